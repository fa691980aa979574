// Package shell installs the docpilot shell plugins and reads the command
// log they write.
package shell

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fakeyudi/docpilot/internal/config"
)

// Supported lists the shells a plugin exists for.
var Supported = []string{"zsh", "bash"}

// PluginPath returns the path where the plugin file for shell is written.
func PluginPath(shell string) (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "docpilot.plugin."+shell), nil
}

// Plugin returns the plugin source for shell, logging into dataDir.
func Plugin(shell, dataDir string) (string, error) {
	var src string
	switch shell {
	case "zsh":
		src = ZshPlugin
	case "bash":
		src = BashPlugin
	default:
		return "", fmt.Errorf("unsupported shell for plugin: %s (supported: %s)", shell, strings.Join(Supported, ", "))
	}
	return strings.ReplaceAll(src, dataDirPlaceholder, shellQuote(dataDir)), nil
}

// Install writes the plugin file for shell and prints the source instruction
// the user needs to add to their rc file.
func Install(shell, dataDir string, out io.Writer) error {
	content, err := Plugin(shell, dataDir)
	if err != nil {
		return err
	}
	path, err := PluginPath(shell)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing plugin file: %w", err)
	}

	rcFile := rcFileName(shell)
	fmt.Fprintf(out, "\n  ✓ Plugin written to %s\n", path)
	fmt.Fprintf(out, "\n  Add this line to your %s:\n", rcFile)
	fmt.Fprintf(out, "    source %s\n", path)
	fmt.Fprintf(out, "\n  Then reload: source %s\n\n", rcFile)
	return nil
}

// IsInstalled reports whether the plugin file exists on disk.
func IsInstalled(shell string) bool {
	path, err := PluginPath(shell)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func rcFileName(shell string) string {
	switch shell {
	case "zsh":
		return "~/.zshrc"
	case "bash":
		return "~/.bashrc"
	default:
		return "~/." + shell + "rc"
	}
}

// shellQuote single-quotes s for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
