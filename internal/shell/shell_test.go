package shell

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseLine(t *testing.T) {
	e, ok := ParseLine("1767225600\t1\t/home/ada/api\tgo test ./...")
	require.True(t, ok)
	require.Equal(t, "go test ./...", e.Command)
	require.Equal(t, time.Unix(1767225600, 0).UTC(), e.Timestamp)
	require.NotNil(t, e.ExitCode)
	require.Equal(t, 1, *e.ExitCode)
	require.Equal(t, "/home/ada/api", e.WorkingDirectory)
}

func TestParseLineLegacyFormat(t *testing.T) {
	e, ok := ParseLine("1767225600\tmake build\r\n")
	require.True(t, ok)
	require.Equal(t, "make build", e.Command)
	require.Nil(t, e.ExitCode)
	require.Empty(t, e.WorkingDirectory)
}

func TestParseLineRejectsMalformed(t *testing.T) {
	for _, line := range []string{"", "no tabs", "\tleading", "abc\tls", "123\t", "123\t0\t/tmp\t  "} {
		_, ok := ParseLine(line)
		require.False(t, ok, "%q", line)
	}
}

func TestParseLineRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		epoch := rapid.Int64Range(0, 1<<33).Draw(t, "epoch")
		code := rapid.IntRange(0, 255).Draw(t, "code")
		cwd := rapid.StringMatching(`/[a-z0-9_./-]{0,30}`).Draw(t, "cwd")
		cmd := rapid.StringMatching(`[a-z][a-z0-9 |&;=./-]{0,40}[a-z0-9]`).Draw(t, "cmd")

		line := strings.Join([]string{
			strconv.FormatInt(epoch, 10), strconv.Itoa(code), cwd, cmd,
		}, "\t")
		e, ok := ParseLine(line)
		if !ok {
			t.Fatalf("line %q not parsed", line)
		}
		if e.Command != cmd || e.WorkingDirectory != cwd || *e.ExitCode != code || e.Timestamp.Unix() != epoch {
			t.Fatalf("parsed %+v from %q", e, line)
		}
	})
}

func TestReadCommandLog(t *testing.T) {
	dir := t.TempDir()
	path := CommandLogPath(dir)

	entries, err := ReadCommandLog(path)
	require.NoError(t, err)
	require.Empty(t, entries)

	content := "100\t0\t/tmp\tls -la\ngarbage\n200\tgit status\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err = ReadCommandLog(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "ls -la", entries[0].Command)
	require.Equal(t, "git status", entries[1].Command)

	require.NoError(t, TruncateCommandLog(path))
	entries, err = ReadCommandLog(path)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, TruncateCommandLog(filepath.Join(dir, "missing.log")))
}

func TestFilter(t *testing.T) {
	f := NewFilter([]string{"clear", "history*", "ls *"})

	for _, cmd := range []string{"docpilot stop", "/usr/local/bin/docpilot note hi", "  ", "clear", "history | grep x", "ls -la"} {
		require.True(t, f.Skip(cmd), cmd)
	}
	for _, cmd := range []string{"make", "go test ./...", "docpilotx", "lsof -i"} {
		require.False(t, f.Skip(cmd), cmd)
	}
}

func TestTailFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), CommandLogName)
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0o644))

	tail, err := NewTail(path, true)
	require.NoError(t, err)

	lines, err := tail.Next()
	require.NoError(t, err)
	require.Empty(t, lines)

	appendFile(t, path, "first\nsec")
	lines, err = tail.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, lines)

	appendFile(t, path, "ond\n")
	lines, err = tail.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"second"}, lines)
}

func TestTailRestartsAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), CommandLogName)
	require.NoError(t, os.WriteFile(path, []byte("a long first line\n"), 0o644))

	tail, err := NewTail(path, false)
	require.NoError(t, err)
	lines, err := tail.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"a long first line"}, lines)

	require.NoError(t, TruncateCommandLog(path))
	appendFile(t, path, "x\n")
	lines, err = tail.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, lines)
}

func TestTailMissingFile(t *testing.T) {
	tail, err := NewTail(filepath.Join(t.TempDir(), "none.log"), true)
	require.NoError(t, err)
	lines, err := tail.Next()
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestIsRecording(t *testing.T) {
	dir := t.TempDir()
	require.False(t, IsRecording(dir))
	require.NoError(t, os.WriteFile(MarkerPath(dir), nil, 0o644))
	require.True(t, IsRecording(dir))
}

func TestPluginEmbedsDataDir(t *testing.T) {
	for _, sh := range Supported {
		src, err := Plugin(sh, "/home/o'brien/data")
		require.NoError(t, err)
		require.Contains(t, src, `_docpilot_dir='/home/o'\''brien/data'`)
		require.NotContains(t, src, dataDirPlaceholder)
		require.Contains(t, src, "recording")
	}
	_, err := Plugin("fish", "/tmp")
	require.Error(t, err)
}

func TestInstall(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var out strings.Builder

	require.False(t, IsInstalled("zsh"))
	require.NoError(t, Install("zsh", "/data", &out))
	require.True(t, IsInstalled("zsh"))
	require.Contains(t, out.String(), "~/.zshrc")

	path, err := PluginPath("zsh")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "add-zsh-hook precmd")
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
