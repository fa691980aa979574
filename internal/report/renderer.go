// Package report renders a finished session as a Markdown or JSON document.
// Markdown reports embed the full session record so they can be imported
// back into a data directory.
package report

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fakeyudi/docpilot/internal/session"
)

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"

	versionSentinel = "<!-- docpilot-report-version: 1 -->"
	dataPrefix      = "<!-- docpilot-data: "
	dataSuffix      = " -->"

	timeLayout = "2006-01-02 15:04:05"
)

// Renderer serializes a session snapshot to bytes.
type Renderer interface {
	Render(s *session.Session) ([]byte, error)
}

// ForFormat returns the renderer for format ("markdown" or "json").
func ForFormat(format string) (Renderer, error) {
	switch format {
	case FormatMarkdown, "md", "":
		return &MarkdownRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (want markdown or json)", format)
	}
}

// Extension returns the file extension used for format, including the dot.
func Extension(format string) string {
	if format == FormatJSON {
		return ".json"
	}
	return ".md"
}

// DefaultPath returns {dir}/docpilot-<timestamp><ext> for reports without an
// explicit output file.
func DefaultPath(dir, format string, t time.Time) string {
	return filepath.Join(dir, "docpilot-"+t.Format("20060102-150405")+Extension(format))
}

// Write renders s in format and writes it to path, creating parent
// directories as needed.
func Write(s *session.Session, format, path string) error {
	r, err := ForFormat(format)
	if err != nil {
		return err
	}
	data, err := r.Render(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// JSONRenderer renders the session record itself.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(s *session.Session) ([]byte, error) {
	return session.Encode(s)
}

// MarkdownRenderer renders a session as human-readable Markdown with an
// embedded base64 copy of the record for lossless import.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(s *session.Session) ([]byte, error) {
	record, err := session.Encode(s)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(record)

	var sb strings.Builder

	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# %s\n\n", s.Description)

	// ## Summary
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Session: `%s`\n", s.ID)
	fmt.Fprintf(&sb, "- State: %s\n", s.State)
	if s.StartedAt != nil {
		fmt.Fprintf(&sb, "- Started: %s\n", s.StartedAt.Format(timeLayout))
	}
	if s.StoppedAt != nil {
		fmt.Fprintf(&sb, "- Stopped: %s\n", s.StoppedAt.Format(timeLayout))
	}
	if s.Stats.DurationSeconds != nil {
		fmt.Fprintf(&sb, "- Duration: %s\n", time.Duration(*s.Stats.DurationSeconds)*time.Second)
	}
	if s.Metadata.User != "" {
		fmt.Fprintf(&sb, "- Author: %s\n", s.Metadata.User)
	}
	fmt.Fprintf(&sb, "- Directory: %s\n", s.Metadata.WorkingDirectory)
	fmt.Fprintf(&sb, "- Environment: %s on %s (%s)\n", s.Metadata.ShellType, s.Metadata.Platform, s.Metadata.Hostname)
	if len(s.Metadata.Tags) > 0 {
		fmt.Fprintf(&sb, "- Tags: %s\n", strings.Join(s.Metadata.Tags, ", "))
	}
	fmt.Fprintf(&sb, "- Commands: %d (%d succeeded, %d failed)\n",
		s.Stats.TotalCommands, s.Stats.SuccessfulCommands, s.Stats.FailedCommands)
	fmt.Fprintf(&sb, "- Pauses: %d\n", s.Stats.PauseResumeCount)
	sb.WriteString("\n")

	// ## Annotations
	sb.WriteString("## Annotations\n\n")
	if len(s.Annotations) == 0 {
		sb.WriteString("_No annotations._\n")
	} else {
		for _, a := range s.Annotations {
			fmt.Fprintf(&sb, "- [%s] **%s** %s\n", a.Timestamp.Format(timeLayout), a.Kind, a.Text)
		}
	}
	sb.WriteString("\n")

	// ## Commands
	sb.WriteString("## Commands\n\n")
	if len(s.Commands) == 0 {
		sb.WriteString("_No terminal commands recorded._\n")
	} else {
		sb.WriteString("| # | Time | Exit | Directory | Command |\n")
		sb.WriteString("|---|------|------|-----------|---------|\n")
		for i, c := range s.Commands {
			exit := "?"
			if c.ExitCode != nil {
				exit = fmt.Sprint(*c.ExitCode)
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | `%s` |\n",
				i+1, c.Timestamp.Format(timeLayout), exit, escapeCell(c.WorkingDirectory), escapeCell(c.Command))
		}
	}
	sb.WriteString("\n")

	// ## Timeline
	sb.WriteString("## Timeline\n\n")
	for _, e := range s.Events {
		if e.Details == "" {
			fmt.Fprintf(&sb, "- %s %s\n", e.Timestamp.Format(timeLayout), e.Type)
		} else {
			fmt.Fprintf(&sb, "- %s %s: %s\n", e.Timestamp.Format(timeLayout), e.Type, e.Details)
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
