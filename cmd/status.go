package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/shell"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		s := mgr.Current()
		if s == nil {
			fmt.Fprintln(out, "no active session")
			return nil
		}

		fmt.Fprintf(out, "Session: %s\n", s.ID)
		fmt.Fprintf(out, "Description: %s\n", s.Description)
		fmt.Fprintf(out, "State: %s\n", s.State)
		if s.StartedAt != nil {
			fmt.Fprintf(out, "Started: %s\n", s.StartedAt.Local().Format(time.RFC3339))
		}
		if d, ok := s.Duration(); ok {
			fmt.Fprintf(out, "Duration: %s\n", d.Round(time.Second))
		}
		fmt.Fprintf(out, "Commands: %d (%d ok, %d failed)\n",
			s.Stats.TotalCommands, s.Stats.SuccessfulCommands, s.Stats.FailedCommands)
		fmt.Fprintf(out, "Annotations: %d\n", s.Stats.TotalAnnotations)
		recording := "no"
		if shell.IsRecording(dataDir) {
			recording = "yes"
		}
		fmt.Fprintf(out, "Recording: %s\n", recording)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
