package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/docpilot/internal/logging"
)

const (
	recordExt = ".json"
	tempExt   = ".json.tmp"

	// DefaultMaxBackups is the number of backups kept per session.
	DefaultMaxBackups = 5
)

// ErrInvalidID is returned for ids that cannot be used as a file name.
var ErrInvalidID = errors.New("invalid session id: contains path separator or traversal sequence")

// Store keeps one live record per session in the sessions directory and a
// bounded set of timestamped snapshots of earlier records in the backups
// directory.
//
// Layout:
//
//	{data}/sessions/{id}.json
//	{data}/backups/{id}_{unix_seconds}.json
type Store struct {
	sessionsDir string
	backupsDir  string
	maxBackups  int
	log         *logging.Logger
	now         func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxBackups sets how many backups are kept per session.
func WithMaxBackups(n int) StoreOption {
	return func(st *Store) {
		if n > 0 {
			st.maxBackups = n
		}
	}
}

// WithStoreLogger sets the logger used for best-effort cleanup paths.
func WithStoreLogger(l *logging.Logger) StoreOption {
	return func(st *Store) { st.log = l }
}

// WithStoreClock overrides the clock used to name backups and compute cutoffs.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(st *Store) { st.now = now }
}

// NewStore returns a Store rooted at dataDir, creating the sessions and
// backups directories if needed.
func NewStore(dataDir string, opts ...StoreOption) (*Store, error) {
	st := &Store{
		sessionsDir: filepath.Join(dataDir, "sessions"),
		backupsDir:  filepath.Join(dataDir, "backups"),
		maxBackups:  DefaultMaxBackups,
		log:         logging.NopLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	for _, dir := range []string{st.sessionsDir, st.backupsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return st, nil
}

// DataDir returns the docpilot-specific XDG data directory:
// $XDG_DATA_HOME/docpilot or ~/.local/share/docpilot.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "docpilot"), nil
}

func (st *Store) SessionsDir() string { return st.sessionsDir }
func (st *Store) BackupsDir() string  { return st.backupsDir }

// RecordPath returns the live record path for id.
func (st *Store) RecordPath(id string) string {
	return filepath.Join(st.sessionsDir, id+recordExt)
}

func validateID(id string) error {
	if id == "" {
		return errors.New("session id must not be empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}

// Write durably replaces the live record of s. An existing record is first
// copied into the backup store, then the new record is written to a temp file
// in the sessions directory and renamed over the old one, so readers only ever
// observe a complete record.
func (st *Store) Write(s *Session) error {
	if err := validateID(s.ID); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := st.Backup(s.ID); err != nil {
		return err
	}
	if err := atomicWrite(st.sessionsDir, s.ID+"-*"+tempExt, st.RecordPath(s.ID), data); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", s.ID, err)
	}
	return nil
}

// atomicWrite writes data to a temp file in dir and renames it to dst.
func atomicWrite(dir, pattern, dst string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

// ReadRaw returns the bytes of the live record for id.
func (st *Store) ReadRaw(id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(st.RecordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	return data, nil
}

// Read decodes the live record for id.
func (st *Store) Read(id string) (*Session, error) {
	data, err := st.ReadRaw(id)
	if err != nil {
		return nil, err
	}
	s, err := Decode(data)
	if err != nil {
		return nil, withPath(err, st.RecordPath(id))
	}
	return s, nil
}

func withPath(err error, path string) error {
	var de *DecodeError
	if errors.As(err, &de) {
		de.Path = path
	}
	return err
}

// Remove deletes the live record for id. A missing record is not an error.
func (st *Store) Remove(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(st.RecordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// IDs lists the ids of every live record, sorted.
func (st *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(st.sessionsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Backup is one snapshot in the backup store.
type Backup struct {
	Path    string
	Time    time.Time // from the file name
	ModTime time.Time
	Size    int64
}

// Backup copies the current on-disk record for id into the backup store and
// prunes old backups. It does nothing when no live record exists.
//
// Backups are named by whole seconds, so a second backup taken within the
// same second replaces the first.
func (st *Store) Backup(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := os.ReadFile(st.RecordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read session %s for backup: %w", id, err)
	}

	ts := st.now()
	dst := filepath.Join(st.backupsDir, fmt.Sprintf("%s_%d%s", id, ts.Unix(), recordExt))
	if err := atomicWrite(st.backupsDir, id+"-*"+tempExt, dst, data); err != nil {
		return fmt.Errorf("failed to back up session %s: %w", id, err)
	}
	// Keep mtime in step with the name so age-based pruning agrees with it.
	if err := os.Chtimes(dst, ts, ts); err != nil {
		st.log.Warn("failed to set backup time", "path", dst, "error", err)
	}

	st.pruneBackups(id)
	return nil
}

// pruneBackups keeps the newest maxBackups backups of id. Failures are logged
// and never returned.
func (st *Store) pruneBackups(id string) {
	backups, err := st.Backups(id)
	if err != nil {
		st.log.Warn("failed to list backups for pruning", "session_id", id, "error", err)
		return
	}
	if len(backups) <= st.maxBackups {
		return
	}
	for _, b := range backups[st.maxBackups:] {
		if err := os.Remove(b.Path); err != nil {
			st.log.Warn("failed to remove old backup", "path", b.Path, "error", err)
		}
	}
}

// Backups lists the backups of id, newest first by modification time.
func (st *Store) Backups(id string) ([]Backup, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(st.backupsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	prefix := id + "_"
	var backups []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		secs, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), recordExt), 10, 64)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			Path:    filepath.Join(st.backupsDir, name),
			Time:    time.Unix(secs, 0),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Time.After(backups[j].Time)
	})
	return backups, nil
}

// ReadBackup decodes the newest backup of id that decodes cleanly, and returns
// the path it came from. It returns ErrNotFound when id has no backups and
// ErrCorrupt when none of them decode.
func (st *Store) ReadBackup(id string) (*Session, string, error) {
	backups, err := st.Backups(id)
	if err != nil {
		return nil, "", err
	}
	if len(backups) == 0 {
		return nil, "", fmt.Errorf("%w: no backups for %s", ErrNotFound, id)
	}
	for _, b := range backups {
		data, err := os.ReadFile(b.Path)
		if err != nil {
			st.log.Warn("failed to read backup", "path", b.Path, "error", err)
			continue
		}
		s, err := Decode(data)
		if err != nil {
			st.log.Warn("backup is corrupted", "path", b.Path, "error", err)
			continue
		}
		return s, b.Path, nil
	}
	return nil, "", fmt.Errorf("%w: all %d backups of %s are unreadable", ErrCorrupt, len(backups), id)
}

// Export copies the live record of id to dst, creating parent directories.
func (st *Store) Export(id, dst string) error {
	data, err := st.ReadRaw(id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := atomicWrite(dir, ".docpilot-export-*"+tempExt, dst, data); err != nil {
		return fmt.Errorf("failed to export session %s: %w", id, err)
	}
	return nil
}

// Cleanup removes stopped session records and any backups or abandoned temp
// files last modified more than maxAge ago. Individual removal failures are
// logged and skipped. It returns the number of files removed.
func (st *Store) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := st.now().Add(-maxAge)
	removed := 0

	remove := func(path, what string) {
		if err := os.Remove(path); err != nil {
			st.log.Warn("failed to remove old "+what, "path", path, "error", err)
			return
		}
		removed++
	}

	sessions, err := readDirOld(st.sessionsDir, cutoff)
	if err != nil {
		return removed, fmt.Errorf("failed to scan sessions: %w", err)
	}
	for _, path := range sessions {
		if strings.HasSuffix(path, tempExt) {
			remove(path, "temp file")
			continue
		}
		if !strings.HasSuffix(path, recordExt) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			st.log.Warn("failed to read old session", "path", path, "error", err)
			continue
		}
		s, err := Decode(data)
		if err != nil || !s.State.IsStopped() {
			continue
		}
		remove(path, "session")
	}

	backups, err := readDirOld(st.backupsDir, cutoff)
	if err != nil {
		return removed, fmt.Errorf("failed to scan backups: %w", err)
	}
	for _, path := range backups {
		if strings.HasSuffix(path, recordExt) || strings.HasSuffix(path, tempExt) {
			remove(path, "backup")
		}
	}
	return removed, nil
}

// readDirOld returns regular files in dir modified before cutoff.
func readDirOld(dir string, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// StorageStats summarizes disk usage. TotalSize includes BackupSize.
type StorageStats struct {
	SessionCount int
	BackupCount  int
	TotalSize    int64
	BackupSize   int64
}

// Stats counts records and bytes in the sessions and backups directories.
func (st *Store) Stats() (StorageStats, error) {
	var stats StorageStats

	count := func(dir string) (n int, size int64, err error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return 0, 0, nil
			}
			return 0, 0, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
				continue
			}
			n++
			if info, err := e.Info(); err == nil {
				size += info.Size()
			}
		}
		return n, size, nil
	}

	n, size, err := count(st.sessionsDir)
	if err != nil {
		return stats, fmt.Errorf("failed to scan sessions: %w", err)
	}
	stats.SessionCount = n
	stats.TotalSize = size

	n, size, err = count(st.backupsDir)
	if err != nil {
		return stats, fmt.Errorf("failed to scan backups: %w", err)
	}
	stats.BackupCount = n
	stats.BackupSize = size
	stats.TotalSize += size
	return stats, nil
}
