package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/report"
	"github.com/fakeyudi/docpilot/internal/session"
	"github.com/fakeyudi/docpilot/internal/shell"
)

var stopMessage string
var stopFormat string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the current session and write its report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Select renderer based on --format flag or config DefaultFormat.
		format := stopFormat
		if format == "" {
			format = cfg.DefaultFormat
		}

		if _, err := report.ForFormat(format); err != nil {
			return err
		}

		if stopMessage != "" {
			if _, err := mgr.AddAnnotation(stopMessage, session.AnnotationMilestone); err != nil {
				return err
			}
		}

		s, err := mgr.Stop()
		if err != nil {
			return err
		}

		outputPath := s.OutputFile
		if outputPath == "" {
			outputPath = report.DefaultPath(cfg.OutputDir, format, *s.StoppedAt)
		}
		if err := report.Write(s, format, outputPath); err != nil {
			// The session itself is already stopped and saved.
			return fmt.Errorf("session %s stopped but the report failed: %w", s.ID, err)
		}

		if err := shell.TruncateCommandLog(shell.CommandLogPath(dataDir)); err != nil {
			logger.Warn("failed to truncate command log", "error", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Session stopped. %d commands, %d annotations.\n",
			s.Stats.TotalCommands, s.Stats.TotalAnnotations)
		fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", outputPath)
		return nil
	},
}

func init() {
	stopCmd.Flags().StringVarP(&stopMessage, "message", "m", "", "Summary recorded as a final milestone annotation")
	stopCmd.Flags().StringVar(&stopFormat, "format", "", "Output format: markdown or json (overrides config)")
	rootCmd.AddCommand(stopCmd)
}
