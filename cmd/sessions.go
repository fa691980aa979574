package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/report"
	"github.com/fakeyudi/docpilot/internal/session"
)

var (
	cleanupDays int
	deleteForce bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := mgr.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
			return nil
		}

		var rows []*session.Session
		for _, id := range ids {
			s, err := mgr.LoadWithRecovery(id)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", id, err)
				continue
			}
			rows = append(rows, s)
		}
		sortByUpdated(rows)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tUPDATED\tCOMMANDS\tDESCRIPTION")
		for _, s := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				s.ID, s.State, s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.Stats.TotalCommands, s.Description)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session as plain text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := mgr.LoadWithRecovery(args[0])
		if err != nil {
			return err
		}
		printSession(cmd.OutOrStdout(), s)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if cur := mgr.Current(); cur != nil && cur.ID == id && !deleteForce {
			return fmt.Errorf("session %s is the current session; stop it first or pass --force", id)
		}
		if err := mgr.Delete(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", id)
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id> <file>",
	Short: "Copy a session record to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.Export(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s.\n", args[0], args[1])
		return nil
	},
}

var sessionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session record or a Markdown report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}
		s, err := report.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		id, err := mgr.ImportSession(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s.\n", id)
		return nil
	},
}

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stopped sessions and backups older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days := cleanupDays
		if days <= 0 {
			days = cfg.CleanupMaxAgeDays
		}
		n, err := mgr.Cleanup(days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files older than %d days.\n", n, days)
		return nil
	},
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := mgr.StorageStats()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Data directory: %s\n", dataDir)
		fmt.Fprintf(out, "Sessions: %d\n", st.SessionCount)
		fmt.Fprintf(out, "Backups: %d (%s)\n", st.BackupCount, humanSize(st.BackupSize))
		fmt.Fprintf(out, "Total size: %s\n", humanSize(st.TotalSize))
		return nil
	},
}

var sessionsBackupsCmd = &cobra.Command{
	Use:   "backups <id>",
	Short: "List the backups of a session, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backups, err := mgr.Backups(args[0])
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSIZE\tPATH")
		for _, b := range backups {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.Time.Local().Format(time.DateTime), humanSize(b.Size), b.Path)
		}
		return w.Flush()
	},
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	sessionsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention period in days (default from config)")
	sessionsDeleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Delete even if it is the current session")
	sessionsCmd.AddCommand(
		sessionsListCmd,
		sessionsShowCmd,
		sessionsDeleteCmd,
		sessionsExportCmd,
		sessionsImportCmd,
		sessionsCleanupCmd,
		sessionsStatsCmd,
		sessionsBackupsCmd,
	)
	rootCmd.AddCommand(sessionsCmd)
}
