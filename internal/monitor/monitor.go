// Package monitor hosts the background recording loop. It follows the command
// log written by the shell plugins, feeds finished commands to the session
// manager, drives cooperative auto-save, and adopts changes other docpilot
// processes make to the live session record.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/docpilot/internal/logging"
	"github.com/fakeyudi/docpilot/internal/session"
	"github.com/fakeyudi/docpilot/internal/shell"
)

// DefaultPollInterval is how often the monitor checks auto-save and re-reads
// the command log even without filesystem events.
const DefaultPollInterval = time.Second

// ErrSessionEnded is returned by Run when the session was stopped, failed or
// deleted by another process.
var ErrSessionEnded = errors.New("session ended outside the monitor")

// Monitor follows one data directory on behalf of a Manager.
type Monitor struct {
	mgr      *session.Manager
	dataDir  string
	filter   *shell.Filter
	log      *logging.Logger
	poll     time.Duration
	shell    string
	platform string
	tail     *shell.Tail
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithIgnorePatterns sets glob patterns of commands that are never recorded.
func WithIgnorePatterns(patterns []string) Option {
	return func(m *Monitor) { m.filter = shell.NewFilter(patterns) }
}

// WithLogger sets the monitor's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithPollInterval sets the fallback polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.poll = d
		}
	}
}

// WithEnvironment overrides the detected shell and platform.
func WithEnvironment(shellName, platform string) Option {
	return func(m *Monitor) {
		m.shell = shellName
		m.platform = platform
	}
}

// New returns a Monitor for the current session of mgr. Commands are read
// from the command log inside dataDir.
func New(mgr *session.Manager, dataDir string, opts ...Option) *Monitor {
	m := &Monitor{
		mgr:      mgr,
		dataDir:  dataDir,
		filter:   shell.NewFilter(nil),
		log:      logging.NopLogger(),
		poll:     DefaultPollInterval,
		shell:    DetectShell(),
		platform: Platform(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DetectShell returns the base name of $SHELL, or "unknown".
func DetectShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return filepath.Base(sh)
	}
	return "unknown"
}

// Platform returns the operating system name recorded on sessions.
func Platform() string {
	if runtime.GOOS == "darwin" {
		return "macos"
	}
	return runtime.GOOS
}

// Run records commands into the current session until ctx is cancelled or
// the session ends elsewhere. The recording marker exists for exactly as long
// as Run does. The session is force-saved on the way out.
func (m *Monitor) Run(ctx context.Context) (err error) {
	cur := m.mgr.Current()
	if cur == nil {
		return session.ErrNoActiveSession
	}
	log := m.log.WithSession(cur.ID)
	recordPath := m.mgr.Store().RecordPath(cur.ID)
	logPath := shell.CommandLogPath(m.dataDir)

	if m.tail, err = shell.NewTail(logPath, true); err != nil {
		return fmt.Errorf("opening command log: %w", err)
	}

	marker := shell.MarkerPath(m.dataDir)
	if err := os.WriteFile(marker, []byte(cur.ID+"\n"), 0o644); err != nil {
		return fmt.Errorf("creating recording marker: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(marker); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("failed to remove recording marker", "path", marker, "error", rmErr)
		}
	}()

	if err := m.mgr.UpdateEnvironment(m.shell, m.platform); err != nil {
		log.Warn("failed to record environment", "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	for _, dir := range []string{m.dataDir, m.mgr.Store().SessionsDir()} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	log.Info("monitor started", "command_log", logPath, "shell", m.shell, "platform", m.platform)
	defer log.Info("monitor stopped")

	for {
		select {
		case <-ctx.Done():
			m.drain(log)
			return m.finish(log)

		case event, ok := <-watcher.Events:
			if !ok {
				return m.finish(log)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			switch filepath.Clean(event.Name) {
			case logPath:
				m.drain(log)
			case recordPath:
				if m.refresh(log) {
					return ErrSessionEnded
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return m.finish(log)
			}
			log.Warn("watcher error", "error", err)

		case <-ticker.C:
			m.drain(log)
			if m.refresh(log) {
				return ErrSessionEnded
			}
			if _, err := m.mgr.CheckAutoSave(); err != nil {
				log.Error("auto-save failed", "error", err)
			}
		}
	}
}

// finish persists the session one last time.
func (m *Monitor) finish(log *logging.Logger) error {
	if err := m.mgr.ForceSave(); err != nil {
		log.Error("final save failed", "error", err)
		return err
	}
	return nil
}

// refresh adopts on-disk changes and reports whether the session is gone.
func (m *Monitor) refresh(log *logging.Logger) (ended bool) {
	changed, err := m.mgr.Refresh()
	if err != nil {
		log.Warn("failed to re-read session record", "error", err)
		return false
	}
	if changed && m.mgr.Current() == nil {
		log.Info("session ended by another process")
		return true
	}
	return false
}

// drain records every complete command appended to the log since the last call.
func (m *Monitor) drain(log *logging.Logger) {
	lines, err := m.tail.Next()
	if err != nil {
		log.Warn("failed to read command log", "error", err)
		return
	}
	for _, line := range lines {
		if err := m.HandleLine(line); err != nil {
			log.Warn("failed to record command", "error", err)
		}
	}
}

// HandleLine parses one command log line and records it on the current
// session. Malformed lines and filtered commands are skipped silently.
func (m *Monitor) HandleLine(line string) error {
	entry, ok := shell.ParseLine(line)
	if !ok {
		m.log.Debug("skipping malformed command log line", "line", line)
		return nil
	}
	if m.filter.Skip(entry.Command) {
		return nil
	}
	entry.Shell = m.shell
	if entry.WorkingDirectory == "" {
		if cur := m.mgr.Current(); cur != nil {
			entry.WorkingDirectory = cur.Metadata.WorkingDirectory
		}
	}
	return m.mgr.AddCommand(entry)
}
