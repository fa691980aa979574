package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/docpilot/internal/config"
	"github.com/fakeyudi/docpilot/internal/profile"
	"github.com/fakeyudi/docpilot/internal/report"
	"github.com/fakeyudi/docpilot/internal/session"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags restores every flag in the tree to its default; cobra keeps
// parsed values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points every docpilot path at fresh temp directories and returns
// the working directory reports land in.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	for _, key := range config.Keys {
		name := config.EnvPrefix + "_" + strings.ToUpper(key)
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	// A profile keeps the first-run wizard out of the way.
	require.NoError(t, profile.Save(&profile.Profile{Name: "Ada", Tags: []string{"ops"}}))

	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	chdir(t, work)
	return work
}

func run(t testing.TB, args ...string) string {
	t.Helper()
	out, err := executeCommand(rootCmd, args...)
	require.NoError(t, err, "docpilot %s: %s", strings.Join(args, " "), out)
	return out
}

func TestStartStatusStop(t *testing.T) {
	work := isolate(t)

	out := run(t, "start", "deploy", "the", "api", "--tag", "release")
	require.Contains(t, out, "Session started:")

	out = run(t, "status")
	require.Contains(t, out, "Description: deploy the api")
	require.Contains(t, out, "State: Active")
	require.Contains(t, out, "Recording: no")

	run(t, "note", "bumped the chart version")
	run(t, "warn", "staging is shared")
	run(t, "annotate", "--kind", "explanation", "rollout is canary first")

	out = run(t, "status")
	require.Contains(t, out, "Annotations: 3")

	out = run(t, "stop", "-m", "shipped")
	require.Contains(t, out, "Session stopped.")

	matches, err := filepath.Glob(filepath.Join(work, "docpilot-*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	s, err := report.Parse(data)
	require.NoError(t, err)
	require.Equal(t, "deploy the api", s.Description)
	require.True(t, s.State.IsStopped())
	require.Len(t, s.Annotations, 4)
	require.Equal(t, session.AnnotationMilestone, s.Annotations[3].Kind)
	require.Equal(t, "Ada", s.Metadata.User)
	require.Equal(t, []string{"ops", "release"}, s.Metadata.Tags)

	out = run(t, "status")
	require.Contains(t, out, "no active session")
}

func TestDoubleStartError(t *testing.T) {
	isolate(t)
	run(t, "start", "first")

	out, err := executeCommand(rootCmd, "start", "second")
	require.Error(t, err)
	require.ErrorIs(t, err, session.ErrSessionActive)
	require.NotContains(t, out, "Session started")

	run(t, "start", "--force", "second")
	require.Contains(t, run(t, "status"), "Description: second")
}

func TestStopNoSessionError(t *testing.T) {
	isolate(t)

	_, err := executeCommand(rootCmd, "stop")
	require.ErrorIs(t, err, session.ErrNoActiveSession)

	_, err = executeCommand(rootCmd, "note", "orphan")
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestStopJSONToOutputFile(t *testing.T) {
	work := isolate(t)
	target := filepath.Join(work, "out", "run.json")

	run(t, "start", "json run", "-o", target)
	run(t, "stop", "--format", "json")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	s, err := session.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "json run", s.Description)
}

func TestStopRejectsUnknownFormatBeforeStopping(t *testing.T) {
	isolate(t)
	run(t, "start", "keep me")

	_, err := executeCommand(rootCmd, "stop", "--format", "pdf")
	require.Error(t, err)
	require.Contains(t, run(t, "status"), "State: Active")
}

func TestPauseResume(t *testing.T) {
	isolate(t)
	run(t, "start", "paused work")

	run(t, "pause")
	require.Contains(t, run(t, "status"), "State: Paused")

	_, err := executeCommand(rootCmd, "pause")
	require.ErrorIs(t, err, session.ErrInvalidTransition)

	// Annotations are still accepted while paused.
	run(t, "note", "waiting on review")

	run(t, "resume")
	out := run(t, "status")
	require.Contains(t, out, "State: Active")
	require.Contains(t, out, "Annotations: 1")
}

func TestAnnotateRejectsUnknownKind(t *testing.T) {
	isolate(t)
	run(t, "start", "kinds")

	_, err := executeCommand(rootCmd, "annotate", "--kind", "rant", "nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown annotation kind")
}

func TestRecoverReportsAdoptedSession(t *testing.T) {
	isolate(t)
	require.Contains(t, run(t, "recover"), "No session to recover.")

	run(t, "start", "long running")
	out := run(t, "recover")
	require.Contains(t, out, "Recovered session")
	require.Contains(t, out, "long running")
}

func TestSessionsCommands(t *testing.T) {
	work := isolate(t)

	run(t, "start", "to export")
	run(t, "milestone", "done")
	run(t, "stop")

	out := run(t, "sessions", "list")
	require.Contains(t, out, "to export")
	require.Contains(t, out, "Stopped")

	ids, err := os.ReadDir(filepath.Join(os.Getenv("XDG_DATA_HOME"), "docpilot", "sessions"))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	id := strings.TrimSuffix(ids[0].Name(), ".json")

	out = run(t, "sessions", "show", id)
	require.Contains(t, out, "## Annotations")
	require.Contains(t, out, "(Milestone) done")

	exported := filepath.Join(work, "export.json")
	run(t, "sessions", "export", id, exported)

	out = run(t, "sessions", "backups", id)
	require.Contains(t, out, "TIME")

	run(t, "sessions", "delete", id)
	require.Contains(t, run(t, "sessions", "list"), "No sessions.")

	out = run(t, "sessions", "import", exported)
	require.Contains(t, out, "Imported "+id)
	require.Contains(t, run(t, "sessions", "list"), "to export")

	out = run(t, "sessions", "stats")
	require.Contains(t, out, "Sessions: 1")

	out = run(t, "sessions", "cleanup", "--days", "30")
	require.Contains(t, out, "Removed 0 files")
}

func TestImportMarkdownReport(t *testing.T) {
	work := isolate(t)
	run(t, "start", "from markdown")
	run(t, "stop")

	matches, err := filepath.Glob(filepath.Join(work, "docpilot-*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// Import into a fresh data directory.
	t.Setenv("XDG_DATA_HOME", filepath.Join(work, "other"))
	require.Contains(t, run(t, "sessions", "import", matches[0]), "Imported")
	require.Contains(t, run(t, "sessions", "list"), "from markdown")
}

func TestDeleteCurrentNeedsForce(t *testing.T) {
	isolate(t)
	run(t, "start", "current")
	id := strings.TrimSpace(strings.TrimPrefix(strings.Split(run(t, "status"), "\n")[0], "Session:"))

	_, err := executeCommand(rootCmd, "sessions", "delete", id)
	require.Error(t, err)

	run(t, "sessions", "delete", "--force", id)
	require.Contains(t, run(t, "status"), "no active session")
}

func TestViewPlain(t *testing.T) {
	work := isolate(t)
	run(t, "start", "viewable")
	run(t, "explain", "why we did it")

	out := run(t, "view", "--plain")
	require.Contains(t, out, "Title:     viewable")
	require.Contains(t, out, "(Explanation) why we did it")

	run(t, "stop")
	matches, err := filepath.Glob(filepath.Join(work, "docpilot-*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	out = run(t, "view", "--plain", matches[0])
	require.Contains(t, out, "State:     Stopped")

	_, err = executeCommand(rootCmd, "view", "--plain")
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestRecordWithoutSession(t *testing.T) {
	isolate(t)
	_, err := executeCommand(rootCmd, "record")
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestStatusCountsAccuracy(t *testing.T) {
	isolate(t)
	rapid.Check(t, func(rt *rapid.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())
		notes := rapid.IntRange(0, 5).Draw(rt, "notes")
		warnings := rapid.IntRange(0, 5).Draw(rt, "warnings")

		run(t, "start", "counting")
		for i := 0; i < notes; i++ {
			run(t, "note", rapid.StringMatching(`[a-z]{1,20}`).Draw(rt, "note"))
		}
		for i := 0; i < warnings; i++ {
			run(t, "warn", rapid.StringMatching(`[a-z]{1,20}`).Draw(rt, "warning"))
		}

		out := run(t, "status")
		want := "Annotations: " + strconv.Itoa(notes+warnings)
		if !strings.Contains(out, want) {
			rt.Fatalf("expected %q in:\n%s", want, out)
		}
	})
}

func TestHintFor(t *testing.T) {
	require.Contains(t, hintFor(session.ErrNoActiveSession), "docpilot start")
	require.Contains(t, hintFor(fmt.Errorf("wrapped: %w", session.ErrSessionActive)), "--force")
	require.Empty(t, hintFor(os.ErrPermission))
}
