package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	startOutput string
	startForce  bool
)

var startCmd = &cobra.Command{
	Use:   "start <description>",
	Short: "Begin a new documentation session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description := strings.Join(args, " ")

		var (
			id  string
			err error
		)
		if startForce {
			id, err = mgr.ForceStart(description, startOutput)
		} else {
			id, err = mgr.Start(description, startOutput)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Session started: %s\n", id)
		if activeProfile == nil || !activeProfile.RecordCommands {
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'docpilot record' in this shell to capture commands.")
		}
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the current session; commands are not captured while paused",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.Pause(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session paused.")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.Resume(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session resumed.")
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&startOutput, "output", "o", "", "Report file written when the session stops")
	startCmd.Flags().BoolVar(&startForce, "force", false, "Discard the current session and start a new one")
	startCmd.Flags().StringSliceVar(&sessionTags, "tag", nil, "Tag for the new session (repeatable)")
	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd)
}
