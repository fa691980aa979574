package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/report"
	"github.com/fakeyudi/docpilot/internal/session"
	"github.com/fakeyudi/docpilot/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [id|file]",
	Short: "View a session, a stored session by id, or a report file",
	Long: `View a session in an interactive viewer.

With no argument the current session is shown and followed as it changes.
The argument may be a session id or the path of a Markdown or JSON report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, load, err := resolveViewTarget(args)
		if err != nil {
			return err
		}

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printSession(cmd.OutOrStdout(), s)
			return nil
		}
		return tui.Run(s, load)
	},
}

// resolveViewTarget finds the session to show. The loader is non-nil only
// for the current session, which may still be changing.
func resolveViewTarget(args []string) (*session.Session, tui.Loader, error) {
	if len(args) == 0 {
		cur := mgr.Current()
		if cur == nil {
			return nil, nil, fmt.Errorf("%w; pass a session id or report file", session.ErrNoActiveSession)
		}
		id := cur.ID
		return cur, func() (*session.Session, error) { return mgr.Store().Read(id) }, nil
	}

	arg := args[0]
	if data, err := os.ReadFile(arg); err == nil {
		s, err := report.Parse(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", arg, err)
		}
		return s, nil, nil
	}
	s, err := mgr.LoadWithRecovery(arg)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// printSession writes a plain-text rendering of s.
func printSession(w io.Writer, s *session.Session) {
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Session:   %s\n", s.ID)
	fmt.Fprintf(w, "  Title:     %s\n", s.Description)
	fmt.Fprintf(w, "  State:     %s\n", s.State)
	fmt.Fprintf(w, "  Work dir:  %s\n", s.Metadata.WorkingDirectory)
	if s.StartedAt != nil {
		fmt.Fprintf(w, "  Started:   %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05 MST"))
	}
	if s.StoppedAt != nil {
		fmt.Fprintf(w, "  Stopped:   %s\n", s.StoppedAt.Local().Format("2006-01-02 15:04:05 MST"))
	}
	if d, ok := s.Duration(); ok {
		fmt.Fprintf(w, "  Duration:  %s\n", d.Round(time.Second))
	}
	if len(s.Metadata.Tags) > 0 {
		fmt.Fprintf(w, "  Tags:      %s\n", strings.Join(s.Metadata.Tags, ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Annotations")
	if len(s.Annotations) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, a := range s.Annotations {
			fmt.Fprintf(w, "  [%s] (%s) %s\n", a.Timestamp.Local().Format("2006-01-02 15:04:05"), a.Kind, a.Text)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Terminal Commands")
	if len(s.Commands) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for i, c := range s.Commands {
			exit := "?"
			if c.ExitCode != nil {
				exit = fmt.Sprint(*c.ExitCode)
			}
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, exit, c.Command)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Events")
	for _, e := range s.Events {
		fmt.Fprintf(w, "  %s  %s", e.Timestamp.Local().Format("15:04:05"), e.Type)
		if e.Details != "" {
			fmt.Fprintf(w, ": %s", e.Details)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// sortByUpdated orders sessions most recently updated first.
func sortByUpdated(ss []*session.Session) {
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].UpdatedAt.After(ss[j].UpdatedAt) })
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
