package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/monitor"
	"github.com/fakeyudi/docpilot/internal/session"
	"github.com/fakeyudi/docpilot/internal/shell"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture shell commands into the current session until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		s := mgr.Current()
		if s == nil {
			return session.ErrNoActiveSession
		}
		if shell.IsRecording(dataDir) {
			return fmt.Errorf("another 'docpilot record' is already running (remove %s if it is stale)",
				shell.MarkerPath(dataDir))
		}

		sh := monitor.DetectShell()
		if !shell.IsInstalled(sh) {
			fmt.Fprintf(out, "⚠ The %s plugin is not installed; run 'docpilot setup' to capture commands.\n", sh)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := monitor.New(mgr, dataDir,
			monitor.WithIgnorePatterns(cfg.IgnorePatterns),
			monitor.WithLogger(logger),
		)
		fmt.Fprintf(out, "Recording %q. Press Ctrl-C to stop recording.\n", s.Description)

		err := m.Run(ctx)
		switch {
		case errors.Is(err, monitor.ErrSessionEnded):
			fmt.Fprintln(out, "Session ended; recording stopped.")
			return nil
		case err != nil && !errors.Is(err, context.Canceled):
			return err
		}
		fmt.Fprintln(out, "Recording stopped. The session is still open.")
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Adopt the most recent interrupted session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Every invocation already attempts recovery; this reports the result.
		s := mgr.Current()
		if s == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No session to recover.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recovered session %s (%s): %s\n", s.ID, s.State, s.Description)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd, recoverCmd)
}
