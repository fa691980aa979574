package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/config"
	"github.com/fakeyudi/docpilot/internal/logging"
	"github.com/fakeyudi/docpilot/internal/profile"
	"github.com/fakeyudi/docpilot/internal/session"
)

var (
	// cfg holds the merged configuration, populated in PersistentPreRunE.
	cfg config.Config

	// activeProfile holds the loaded user profile, or nil.
	activeProfile *profile.Profile

	dataDir string
	logger  *logging.Logger
	mgr     *session.Manager

	// sessionTags are extra tags for sessions created by this invocation.
	sessionTags []string
)

var rootCmd = &cobra.Command{
	Use:           "docpilot",
	Short:         "Record terminal sessions and annotations as durable, shareable documentation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to docpilot! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		return openManager()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return logger.Close()
		}
		return nil
	},
}

// resolveDataDir returns the configured data directory or the XDG default.
func resolveDataDir() (string, error) {
	if cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	return session.DataDir()
}

// openManager wires the store and manager for this invocation and adopts any
// session left running by another process.
func openManager() error {
	dir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	dataDir = dir

	logger, err = logging.NewLogger(dataDir, cfg.LogLevel)
	if err != nil {
		return err
	}

	store, err := session.NewStore(dataDir,
		session.WithMaxBackups(cfg.MaxBackups),
		session.WithStoreLogger(logger),
	)
	if err != nil {
		return err
	}

	mgr = session.NewManager(store,
		session.WithAutoSaveInterval(cfg.AutoSave()),
		session.WithLogger(logger),
		session.WithMetadata(func() session.Metadata {
			return activeProfile.Apply(session.DefaultMetadata(), sessionTags...)
		}),
	)

	if id, ok, err := mgr.Recover(); err != nil {
		logger.Warn("session recovery failed", "error", err)
	} else if ok {
		logger.Debug("adopted running session", "session_id", id)
	}
	return nil
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

// hintFor suggests the next step for errors a user can act on.
func hintFor(err error) string {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return "Start one with: docpilot start <description>"
	case errors.Is(err, session.ErrSessionActive):
		return "Stop it with 'docpilot stop', or pass --force to discard it."
	case errors.Is(err, session.ErrNotFound):
		return "List stored sessions with: docpilot sessions list"
	case errors.Is(err, session.ErrCorrupt):
		return "The record and all its backups are unreadable; see 'docpilot sessions backups <id>'."
	}
	return ""
}
