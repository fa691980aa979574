package shell

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/docpilot/internal/session"
)

const (
	// CommandLogName is the command log written by the shell plugins.
	CommandLogName = "commands.log"
	// MarkerName is the file whose presence tells the plugins to log.
	MarkerName = "recording"
)

// CommandLogPath returns the path to the command log inside dataDir.
func CommandLogPath(dataDir string) string {
	return filepath.Join(dataDir, CommandLogName)
}

// MarkerPath returns the path to the recording marker inside dataDir.
func MarkerPath(dataDir string) string {
	return filepath.Join(dataDir, MarkerName)
}

// IsRecording reports whether a monitor currently holds the recording marker.
func IsRecording(dataDir string) bool {
	_, err := os.Stat(MarkerPath(dataDir))
	return err == nil
}

// ParseLine parses one command log line. Two formats are accepted:
//
//	<epoch>\t<exit>\t<cwd>\t<command>
//	<epoch>\t<command>
//
// The second is written by older plugins and carries no exit code. ok is
// false for blank or malformed lines.
func ParseLine(line string) (entry session.CommandEntry, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	tab := strings.IndexByte(line, '\t')
	if tab < 1 {
		return entry, false
	}
	epoch, err := strconv.ParseInt(line[:tab], 10, 64)
	if err != nil {
		return entry, false
	}
	entry.Timestamp = time.Unix(epoch, 0).UTC()
	rest := line[tab+1:]

	if parts := strings.SplitN(rest, "\t", 3); len(parts) == 3 {
		if code, err := strconv.Atoi(parts[0]); err == nil {
			entry.ExitCode = &code
			entry.WorkingDirectory = parts[1]
			rest = parts[2]
		}
	}
	entry.Command = strings.TrimSpace(rest)
	if entry.Command == "" {
		return entry, false
	}
	return entry, true
}

// ReadCommandLog parses every entry in the command log at path. A missing log
// is not an error.
func ReadCommandLog(path string) ([]session.CommandEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []session.CommandEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if e, ok := ParseLine(scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	return entries, scanner.Err()
}

// TruncateCommandLog empties the command log after a session is stopped.
func TruncateCommandLog(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.WriteFile(path, nil, 0o644)
}

// IsNoise reports whether cmd is a docpilot invocation, which is never
// recorded.
func IsNoise(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return true
	}
	return filepath.Base(fields[0]) == "docpilot"
}

// Filter decides which commands are recorded.
type Filter struct {
	patterns []string
}

// NewFilter returns a filter skipping docpilot's own commands and any command
// matching one of the glob patterns, either as a whole or by its first word.
func NewFilter(patterns []string) *Filter {
	return &Filter{patterns: patterns}
}

// Skip reports whether cmd should not be recorded.
func (f *Filter) Skip(cmd string) bool {
	if IsNoise(cmd) {
		return true
	}
	cmd = strings.TrimSpace(cmd)
	first := strings.Fields(cmd)[0]
	for _, p := range f.patterns {
		if ok, _ := filepath.Match(p, cmd); ok {
			return true
		}
		if ok, _ := filepath.Match(p, first); ok {
			return true
		}
	}
	return false
}

// Tail reads lines appended to a file since the last call. A trailing line
// without a newline is held back until it is complete. If the file shrinks
// (it was truncated) reading restarts at the beginning.
type Tail struct {
	path    string
	offset  int64
	partial []byte
}

// NewTail returns a Tail over path. With fromEnd set, lines already in the
// file are skipped.
func NewTail(path string, fromEnd bool) (*Tail, error) {
	t := &Tail{path: path}
	if !fromEnd {
		return t, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return nil, err
	}
	t.offset = info.Size()
	return t, nil
}

// Next returns the complete lines appended since the previous call.
func (t *Tail) Next() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < t.offset {
		t.offset = 0
		t.partial = nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	t.partial = nil
	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(data[:i]))
		data = data[i+1:]
	}
	if len(data) > 0 {
		t.partial = append([]byte(nil), data...)
	}
	return lines, nil
}
