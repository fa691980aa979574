package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/config"
	"github.com/fakeyudi/docpilot/internal/profile"
	"github.com/fakeyudi/docpilot/internal/shell"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure docpilot (re-run anytime to edit settings)",
	// Bypass the normal PersistentPreRunE so setup works before profile exists.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, false)
	},
}

// runSetup runs the interactive setup wizard on the command's streams.
// If firstRun is true, a welcome message is shown.
func runSetup(cmd *cobra.Command, firstRun bool) error {
	out := cmd.OutOrStdout()
	if firstRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Let's get you set up.")
	}

	// Load existing profile as defaults if present.
	var existing *profile.Profile
	if profile.Exists() {
		p, err := profile.Load()
		if err == nil {
			existing = p
		}
	}

	prof, err := profile.RunSetup(cmd.InOrStdin(), out, existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	if err := profile.Save(prof); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	fmt.Fprintln(out, "  ✓ Profile saved.")

	// Install shell plugin if requested. The plugin writes into the data
	// directory, which may be overridden by configuration.
	if prof.RecordCommands && prof.ShellPluginShell != "" {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		dir, err := resolveDataDir()
		if err != nil {
			return err
		}
		if err := shell.Install(prof.ShellPluginShell, dir, out); err != nil {
			fmt.Fprintf(out, "  ⚠ Plugin install failed: %v\n", err)
			fmt.Fprintln(out, "    You can retry with: docpilot setup")
		}
	}

	fmt.Fprintln(out, "  Setup complete. Run 'docpilot start <description>' to begin a session.")
	fmt.Fprintln(out)
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
