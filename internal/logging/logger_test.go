package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.Info("session started", "session_id", "abc", "commands", 3)

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	require.Equal(t, "INFO", entries[0]["level"])
	require.Equal(t, "session started", entries[0]["msg"])
	require.Equal(t, "abc", entries[0]["session_id"])
	require.EqualValues(t, 3, entries[0]["commands"])
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")

	require.Len(t, decodeLines(t, buf.Bytes()), 2)
}

func TestLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chatty")
	l.Debug("hidden")
	l.Info("shown")
	require.Len(t, decodeLines(t, buf.Bytes()), 1)
}

func TestWithSessionAddsAttribute(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, LevelDebug)
	child := base.WithSession("s-1").With("component", "monitor")

	child.Debug("tick")
	base.Debug("plain")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)
	require.Equal(t, "s-1", entries[0]["session_id"])
	require.Equal(t, "monitor", entries[0]["component"])
	require.NotContains(t, entries[1], "session_id")
}

func TestNewLoggerAppendsToFile(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLogger(dir, LevelInfo)
	require.NoError(t, err)
	l.Info("first")
	require.NoError(t, l.Close())

	l, err = NewLogger(dir, LevelInfo)
	require.NoError(t, err)
	l.Info("second")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	entries := decodeLines(t, data)
	require.Len(t, entries, 2)
	require.Equal(t, "second", entries[1]["msg"])
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Error("discarded")
	require.NoError(t, l.Close())
}
