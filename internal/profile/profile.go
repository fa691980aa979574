// Package profile manages the user's persistent docpilot profile.
// The profile is stored next to the global config (~/.config/docpilot/profile.json),
// is created via the interactive setup flow, and seeds the metadata of every
// new session.
package profile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fakeyudi/docpilot/internal/config"
	"github.com/fakeyudi/docpilot/internal/session"
)

// Profile holds user-level preferences set during setup.
type Profile struct {
	Name             string   `json:"name"`
	Tags             []string `json:"tags"`
	LLMProvider      string   `json:"llm_provider"`
	RecordCommands   bool     `json:"record_commands"`    // install shell plugin
	ShellPluginShell string   `json:"shell_plugin_shell"` // "zsh" | "bash" | ""
}

// Path returns the path to the profile file.
func Path() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk. A missing profile yields nil and no error.
func Load() (*Profile, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
func Save(prof *Profile) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Apply copies the profile's identity into session metadata. Tags given on the
// command line are appended after the profile's own.
func (p *Profile) Apply(md session.Metadata, extraTags ...string) session.Metadata {
	tags := make([]string, 0, len(extraTags))
	if p != nil {
		if p.Name != "" {
			md.User = p.Name
		}
		if p.LLMProvider != "" {
			md.LLMProvider = p.LLMProvider
		}
		tags = append(tags, p.Tags...)
	}
	for _, t := range extraTags {
		if t = strings.TrimSpace(t); t != "" && !contains(tags, t) {
			tags = append(tags, t)
		}
	}
	md.Tags = tags
	return md
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// RunSetup runs the interactive setup wizard reading answers from in and
// writing prompts to out. If existing is non-nil, it supplies the default for
// each prompt (edit mode).
func RunSetup(in io.Reader, out io.Writer, existing *Profile) (*Profile, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		ans = strings.ToLower(ans)
		return ans == "y" || ans == "yes", nil
	}

	prof := &Profile{RecordCommands: true}
	if existing != nil {
		*prof = *existing
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │   docpilot setup                │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	prof.Name, err = ask("  Your name (recorded on sessions)", prof.Name)
	if err != nil {
		return nil, err
	}

	tags, err := ask("  Default tags (comma separated)", strings.Join(prof.Tags, ","))
	if err != nil {
		return nil, err
	}
	prof.Tags = splitTags(tags)

	prof.LLMProvider, err = ask("  LLM provider for generated docs (blank for none)", prof.LLMProvider)
	if err != nil {
		return nil, err
	}

	prof.RecordCommands, err = askBool("  Record terminal commands via shell plugin", prof.RecordCommands)
	if err != nil {
		return nil, err
	}

	if prof.RecordCommands {
		def := prof.ShellPluginShell
		if def == "" {
			def = DetectShell()
		}
		shell, err := ask("  Shell (zsh/bash)", def)
		if err != nil {
			return nil, err
		}
		prof.ShellPluginShell = shell
	} else {
		prof.ShellPluginShell = ""
	}

	fmt.Fprintln(out)
	return prof, nil
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// DetectShell returns the base name of the current shell if the plugin
// supports it, and zsh otherwise.
func DetectShell() string {
	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "zsh" || shell == "bash" {
		return shell
	}
	return "zsh"
}
