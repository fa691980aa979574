package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/docpilot/internal/session"
	"github.com/fakeyudi/docpilot/internal/shell"
)

func setup(t *testing.T) (string, *session.Manager) {
	t.Helper()
	dir := t.TempDir()
	st, err := session.NewStore(dir)
	require.NoError(t, err)
	mgr := session.NewManager(st)
	_, err = mgr.Start("monitored", "")
	require.NoError(t, err)
	return dir, mgr
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fmt.Fprintln(f, line)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestHandleLine(t *testing.T) {
	dir, mgr := setup(t)
	m := New(mgr, dir, WithEnvironment("zsh", "linux"), WithIgnorePatterns([]string{"clear"}))

	require.NoError(t, m.HandleLine("100\t0\t/srv/app\tmake test"))
	require.NoError(t, m.HandleLine("101\tgit status"))
	require.NoError(t, m.HandleLine("not a log line"))
	require.NoError(t, m.HandleLine("102\t0\t/srv/app\tclear"))
	require.NoError(t, m.HandleLine("103\t0\t/srv/app\tdocpilot note hello"))

	cur := mgr.Current()
	require.Len(t, cur.Commands, 2)
	require.Equal(t, "make test", cur.Commands[0].Command)
	require.Equal(t, "zsh", cur.Commands[0].Shell)
	require.Equal(t, "/srv/app", cur.Commands[0].WorkingDirectory)
	require.Equal(t, cur.Metadata.WorkingDirectory, cur.Commands[1].WorkingDirectory)
	require.Equal(t, 1, cur.Stats.SuccessfulCommands)
}

func TestHandleLineWithoutSession(t *testing.T) {
	dir := t.TempDir()
	st, err := session.NewStore(dir)
	require.NoError(t, err)
	m := New(session.NewManager(st), dir)

	err = m.HandleLine("100\t0\t/tmp\tls")
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestRunWithoutSession(t *testing.T) {
	dir := t.TempDir()
	st, err := session.NewStore(dir)
	require.NoError(t, err)

	err = New(session.NewManager(st), dir).Run(context.Background())
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestRunRecordsAppendedCommands(t *testing.T) {
	dir, mgr := setup(t)
	logPath := shell.CommandLogPath(dir)
	appendLine(t, logPath, "1\t0\t/tmp\tbefore the monitor started")

	m := New(mgr, dir, WithEnvironment("bash", "macos"), WithPollInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	marker := shell.MarkerPath(dir)
	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	appendLine(t, logPath, "200\t0\t/tmp\tgo build ./...")
	appendLine(t, logPath, "201\t2\t/tmp\tgo vet ./...")

	require.Eventually(t, func() bool {
		return mgr.Current().Stats.TotalCommands == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}

	require.NoFileExists(t, marker)

	cur := mgr.Current()
	require.Equal(t, "bash", cur.Metadata.ShellType)
	require.Equal(t, "macos", cur.Metadata.Platform)

	onDisk, err := mgr.Store().Read(cur.ID)
	require.NoError(t, err)
	require.Equal(t, 2, onDisk.Stats.TotalCommands)
	require.Equal(t, 1, onDisk.Stats.FailedCommands)
}

func TestRunExitsWhenStoppedElsewhere(t *testing.T) {
	dir, mgr := setup(t)
	m := New(mgr, dir, WithEnvironment("zsh", "linux"), WithPollInterval(20*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return mgr.Current().Metadata.ShellType == "zsh"
	}, 2*time.Second, 10*time.Millisecond)

	// A second process adopts and stops the session.
	time.Sleep(5 * time.Millisecond)
	other := session.NewManager(mgr.Store())
	_, ok, err := other.Recover()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = other.Stop()
	require.NoError(t, err)

	select {
	case err := <-done:
		require.True(t, errors.Is(err, ErrSessionEnded), "got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not notice the session ended")
	}
	require.Nil(t, mgr.Current())
	require.NoFileExists(t, shell.MarkerPath(dir))
}

func TestPlatform(t *testing.T) {
	require.NotEqual(t, "darwin", Platform())
	require.NotEmpty(t, Platform())
}

func TestDetectShell(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/fish")
	require.Equal(t, "fish", DetectShell())
	t.Setenv("SHELL", "")
	require.Equal(t, "unknown", DetectShell())
}
