package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fakeyudi/docpilot/internal/session"
)

// Parse recovers the session record from a report. Markdown reports are
// recognised by their version sentinel; anything else is decoded as a JSON
// record.
func Parse(data []byte) (*session.Session, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<!--")) {
		return ParseMarkdown(data)
	}
	return session.Decode(data)
}

// ParseMarkdown extracts the record embedded in a Markdown report.
func ParseMarkdown(data []byte) (*session.Session, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("not a docpilot report: missing version sentinel")
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a docpilot report: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a docpilot report: malformed data payload")
	}
	encoded := content[start : start+end]

	record, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not a docpilot report: corrupted base64 payload: %w", err)
	}
	s, err := session.Decode(record)
	if err != nil {
		return nil, fmt.Errorf("not a docpilot report: %w", err)
	}
	return s, nil
}
