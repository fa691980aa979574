package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/docpilot/internal/session"
)

func TestValidateAcceptsLiveSessions(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddCommand(session.CommandEntry{Command: "ls", ExitCode: intPtr(0)}))
	_, err := s.AddAnnotation("note", session.AnnotationNote)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	require.True(t, session.Validate(s), "%v", session.Check(s))
}

func TestValidateRejectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(*session.Session)
	}{
		{"nil", nil},
		{"empty id", func(s *session.Session) { s.ID = "" }},
		{"empty description", func(s *session.Session) { s.Description = "" }},
		{"unknown state", func(s *session.Session) { s.State = session.State{Kind: "Running"} }},
		{"total annotations", func(s *session.Session) { s.Stats.TotalAnnotations = 5 }},
		{"command counters", func(s *session.Session) {
			s.Stats.SuccessfulCommands = 2
			s.Stats.FailedCommands = 1
		}},
		{"stop before start", func(s *session.Session) {
			early := s.StartedAt.Add(-time.Hour)
			s.StoppedAt = &early
		}},
		{"bad event id", func(s *session.Session) { s.Events[0].ID = "not-a-uuid" }},
		{"duplicate annotation id", func(s *session.Session) {
			s.Annotations = append(s.Annotations, s.Annotations[0])
			s.Stats.TotalAnnotations++
		}},
		{"annotation shares event id", func(s *session.Session) { s.Annotations[0].ID = s.Events[0].ID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *session.Session
			if tt.tamper != nil {
				s = newSession(t)
				_, err := s.AddAnnotation("a", session.AnnotationNote)
				require.NoError(t, err)
				require.NoError(t, s.AddCommand(session.CommandEntry{Command: "true", ExitCode: intPtr(0)}))
				require.True(t, session.Validate(s))
				tt.tamper(s)
			}
			require.False(t, session.Validate(s))
			require.Error(t, session.Check(s))
		})
	}
}

func TestValidateIgnoresCreatedStartedOrder(t *testing.T) {
	s := newSession(t)
	late := s.CreatedAt.Add(time.Hour)
	s.StartedAt = &late
	require.True(t, session.Validate(s))

	s.StartedAt = nil
	require.True(t, session.Validate(s))
}
