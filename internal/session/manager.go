package session

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fakeyudi/docpilot/internal/logging"
)

// DefaultAutoSaveInterval is the minimum time between CheckAutoSave writes.
const DefaultAutoSaveInterval = 30 * time.Second

// Manager owns at most one current session and is the only component that
// mutates session records. Every mutation is applied in memory first and then
// persisted, so a crash between the two leaves the previous record on disk.
//
// Only one session is expected to be active at a time. This is a convention
// enforced by Start, not a lock: another process writing the same record
// directly can still violate it.
type Manager struct {
	mu sync.Mutex

	store    *Store
	log      *logging.Logger
	clock    func() time.Time
	metadata func() Metadata

	current  *Session
	cache    map[string]*Session
	interval time.Duration
	lastSave time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithAutoSaveInterval sets the interval used by CheckAutoSave.
func WithAutoSaveInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock overrides the clock used for auto-save bookkeeping.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithMetadata sets the function producing metadata for new sessions.
func WithMetadata(fn func() Metadata) Option {
	return func(m *Manager) { m.metadata = fn }
}

// NewManager returns a Manager persisting through store.
func NewManager(store *Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		log:      logging.NopLogger(),
		clock:    time.Now,
		metadata: DefaultMetadata,
		cache:    make(map[string]*Session),
		interval: DefaultAutoSaveInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *Store { return m.store }

// Start creates, persists and installs a new session. It fails with
// ErrSessionActive when a current session exists and leaves it untouched.
func (m *Manager) Start(description, outputFile string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return "", fmt.Errorf("%w: %s (%s) is %s; stop it first",
			ErrSessionActive, m.current.Description, m.current.ID, m.current.State)
	}
	return m.startLocked(description, outputFile)
}

// ForceStart is Start after discarding any current session. The discarded
// session's record is left on disk unchanged.
func (m *Manager) ForceStart(description, outputFile string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.log.Info("discarding current session", "session_id", m.current.ID)
		m.current = nil
	}
	return m.startLocked(description, outputFile)
}

func (m *Manager) startLocked(description, outputFile string) (string, error) {
	s, err := New(description, outputFile, m.metadata())
	if err != nil {
		return "", err
	}
	if err := m.saveLocked(s); err != nil {
		return "", err
	}
	m.current = s
	m.log.Info("session started", "session_id", s.ID, "description", description)
	return s.ID, nil
}

// Pause pauses the current session and persists it.
func (m *Manager) Pause() error {
	return m.mutate(func(s *Session) error { return s.Pause() })
}

// Resume resumes the current session and persists it.
func (m *Manager) Resume() error {
	return m.mutate(func(s *Session) error { return s.Resume() })
}

// Fail moves the current session into the error state and persists it.
func (m *Manager) Fail(reason string) error {
	return m.mutate(func(s *Session) error {
		s.SetError(reason)
		return nil
	})
}

// UpdateEnvironment records the monitor's shell and platform on the current
// session. Nothing is written when the values are unchanged.
func (m *Manager) UpdateEnvironment(shell, platform string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoActiveSession
	}
	if !m.current.UpdateEnvironment(shell, platform) {
		return nil
	}
	return m.saveLocked(m.current)
}

// Stop stops the current session, persists it, clears it and returns the
// finalized session. On failure the current session is kept.
func (m *Manager) Stop() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoActiveSession
	}
	// Stop a copy so a failed save leaves the current session as it was.
	s := m.current.Clone()
	if err := s.Stop(); err != nil {
		return nil, err
	}
	if err := m.saveLocked(s); err != nil {
		return nil, err
	}
	m.current = nil
	m.log.Info("session stopped", "session_id", s.ID, "commands", s.Stats.TotalCommands)
	return s, nil
}

// AddCommand records a finished command on the current session. Commands
// arriving while the session is not Active are dropped without error.
func (m *Manager) AddCommand(entry CommandEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoActiveSession
	}
	if !m.current.State.IsActive() {
		m.log.Debug("dropping command while not active",
			"session_id", m.current.ID, "state", m.current.State.String())
		return nil
	}
	if err := m.current.AddCommand(entry); err != nil {
		return err
	}
	return m.saveLocked(m.current)
}

// AddAnnotation annotates the current session, which may be Active or Paused,
// and returns the annotation id.
func (m *Manager) AddAnnotation(text string, kind AnnotationKind) (string, error) {
	var id string
	err := m.mutate(func(s *Session) error {
		var err error
		id, err = s.AddAnnotation(text, kind)
		return err
	})
	return id, err
}

// mutate applies fn to the current session and persists the result.
func (m *Manager) mutate(fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoActiveSession
	}
	if err := fn(m.current); err != nil {
		return err
	}
	return m.saveLocked(m.current)
}

// Current returns a snapshot of the current session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// SetCurrent installs s as the current session, replacing any other. It is
// used by recovery and by processes adopting a session started elsewhere.
func (m *Manager) SetCurrent(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s.Clone()
}

// ClearCurrent forgets the current session without touching its record.
func (m *Manager) ClearCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

func (m *Manager) saveLocked(s *Session) error {
	if err := m.store.Write(s); err != nil {
		return err
	}
	m.cache[s.ID] = s.Clone()
	m.lastSave = m.clock()
	return nil
}

// CheckAutoSave persists the current session if the auto-save interval has
// elapsed since the last save. It reports whether a save happened.
func (m *Manager) CheckAutoSave() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false, nil
	}
	if !m.lastSave.IsZero() && m.clock().Sub(m.lastSave) < m.interval {
		return false, nil
	}
	if err := m.saveLocked(m.current); err != nil {
		return false, err
	}
	return true, nil
}

// ForceSave persists the current session regardless of the interval. It is
// a no-op without a current session.
func (m *Manager) ForceSave() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	return m.saveLocked(m.current)
}

// Load returns the session with id, from the cache or its live record.
func (m *Manager) Load(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (m *Manager) loadLocked(id string) (*Session, error) {
	if s, ok := m.cache[id]; ok {
		return s, nil
	}
	s, err := m.store.Read(id)
	if err != nil {
		return nil, err
	}
	m.cache[id] = s
	return s, nil
}

// LoadWithRecovery loads id and, if the live record is missing or corrupt,
// falls back to the newest backup that decodes.
func (m *Manager) LoadWithRecovery(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadWithRecoveryLocked(id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (m *Manager) loadWithRecoveryLocked(id string) (*Session, error) {
	s, err := m.loadLocked(id)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, ErrInvalidID) {
		return nil, err
	}
	m.log.Warn("failed to load session, trying backups", "session_id", id, "error", err)

	b, path, berr := m.store.ReadBackup(id)
	if berr != nil {
		if errors.Is(berr, ErrNotFound) {
			// No backups: the live-record error stands.
			return nil, err
		}
		return nil, berr
	}
	m.log.Info("recovered session from backup", "session_id", id, "backup", path)
	return b, nil
}

// Recover scans every stored session, picks the most recently updated Active
// or Paused one that passes validation, and installs it as current. ok is
// false when there is nothing to recover.
func (m *Manager) Recover() (id string, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.store.IDs()
	if err != nil {
		return "", false, err
	}

	var candidates []*Session
	for _, sid := range ids {
		s, err := m.loadWithRecoveryLocked(sid)
		if err != nil {
			m.log.Warn("skipping unrecoverable session", "session_id", sid, "error", err)
			continue
		}
		if s.State.IsActive() || s.State.IsPaused() {
			candidates = append(candidates, s)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	for _, c := range candidates {
		if err := check(c); err != nil {
			m.log.Warn("recovery candidate failed validation", "session_id", c.ID, "error", err)
			continue
		}
		m.current = c.Clone()
		m.log.Info("recovered session", "session_id", c.ID, "state", c.State.String())
		return c.ID, true, nil
	}
	return "", false, nil
}

// Refresh re-reads the current session's live record, bypassing the cache,
// and adopts it when another process has written a newer version. A record
// that is gone or no longer modifiable clears the current session. It
// reports whether the current session changed.
func (m *Manager) Refresh() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false, nil
	}
	id := m.current.ID
	disk, err := m.store.Read(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.log.Info("current session record was removed", "session_id", id)
			delete(m.cache, id)
			m.current = nil
			return true, nil
		}
		return false, err
	}
	if !disk.UpdatedAt.After(m.current.UpdatedAt) {
		return false, nil
	}

	m.cache[id] = disk
	if disk.CanModify() {
		m.current = disk.Clone()
	} else {
		m.current = nil
	}
	m.log.Info("adopted newer session record", "session_id", id, "state", disk.State.String())
	return true, nil
}

// List returns the ids of every stored session.
func (m *Manager) List() ([]string, error) {
	return m.store.IDs()
}

// Delete removes the live record of id and its cache entry, clearing the
// current session if it matches. Backups are kept until they age out.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Remove(id); err != nil {
		return err
	}
	delete(m.cache, id)
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
	return nil
}

// Export copies the live record of id to path.
func (m *Manager) Export(id, path string) error {
	return m.store.Export(id, path)
}

// Import reads a record from path, validates it and stores it as a live
// record. It returns the imported session's id.
func (m *Manager) Import(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("import file not found: %s", path)
		}
		return "", fmt.Errorf("failed to read import file: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return "", withPath(err, path)
	}
	return m.ImportSession(s)
}

// ImportSession validates s and stores it as a live record, replacing any
// record with the same id. It returns the session's id.
func (m *Manager) ImportSession(s *Session) (string, error) {
	if err := check(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(s); err != nil {
		return "", err
	}
	// The imported record supersedes an in-memory current session with the
	// same id; otherwise the next mutation would write the old copy back.
	if m.current != nil && m.current.ID == s.ID {
		if s.CanModify() {
			m.current = s.Clone()
		} else {
			m.current = nil
		}
	}
	m.log.Info("session imported", "session_id", s.ID)
	return s.ID, nil
}

// Cleanup deletes stopped sessions and backups older than maxAgeDays and
// returns how many files were removed.
func (m *Manager) Cleanup(maxAgeDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.store.Cleanup(time.Duration(maxAgeDays) * 24 * time.Hour)
	// Removed records may still be cached.
	for id := range m.cache {
		if _, statErr := os.Stat(m.store.RecordPath(id)); errors.Is(statErr, os.ErrNotExist) {
			delete(m.cache, id)
		}
	}
	return n, err
}

// StorageStats reports record counts and sizes.
func (m *Manager) StorageStats() (StorageStats, error) {
	return m.store.Stats()
}

// Backups lists the backups of id, newest first.
func (m *Manager) Backups(id string) ([]Backup, error) {
	return m.store.Backups(id)
}
