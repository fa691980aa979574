package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/docpilot/internal/session"
)

var annotateKind string

// annotationCmd builds a command adding an annotation of a fixed kind.
func annotationCmd(use, short string, kind session.AnnotationKind) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <text>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addAnnotation(cmd, strings.Join(args, " "), kind)
		},
	}
}

func addAnnotation(cmd *cobra.Command, text string, kind session.AnnotationKind) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("annotation text must not be empty")
	}
	if _, err := mgr.AddAnnotation(text, kind); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s added.\n", kind)
	return nil
}

var annotateCmd = &cobra.Command{
	Use:   "annotate <text>",
	Short: "Add an annotation of any kind to the current session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := session.ParseAnnotationKind(annotateKind)
		if err != nil {
			return err
		}
		return addAnnotation(cmd, strings.Join(args, " "), kind)
	},
}

func init() {
	annotateCmd.Flags().StringVar(&annotateKind, "kind", "note", "Annotation kind: note, explanation, warning or milestone")
	rootCmd.AddCommand(
		annotationCmd("note", "Add a note to the current session", session.AnnotationNote),
		annotationCmd("explain", "Explain what was just done", session.AnnotationExplanation),
		annotationCmd("warn", "Record a warning or pitfall", session.AnnotationWarning),
		annotationCmd("milestone", "Mark a milestone", session.AnnotationMilestone),
		annotateCmd,
	)
}
