package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Validate reports whether s is consistent enough to be trusted after a load.
// The ordering of CreatedAt and StartedAt is deliberately not checked.
func Validate(s *Session) bool {
	return check(s) == nil
}

// check returns the first invariant s violates, for logging.
func check(s *Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	if s.ID == "" {
		return errors.New("empty id")
	}
	if s.Description == "" {
		return errors.New("empty description")
	}
	switch s.State.Kind {
	case KindActive, KindPaused, KindStopped, KindError:
	default:
		return fmt.Errorf("unknown state %q", s.State.Kind)
	}
	if s.StartedAt != nil && s.StoppedAt != nil && s.StoppedAt.Before(*s.StartedAt) {
		return fmt.Errorf("stopped_at %s precedes started_at %s", s.StoppedAt, s.StartedAt)
	}
	if s.Stats.SuccessfulCommands+s.Stats.FailedCommands > s.Stats.TotalCommands {
		return fmt.Errorf("successful (%d) + failed (%d) exceeds total commands (%d)",
			s.Stats.SuccessfulCommands, s.Stats.FailedCommands, s.Stats.TotalCommands)
	}
	if s.Stats.TotalAnnotations != len(s.Annotations) {
		return fmt.Errorf("total_annotations is %d but %d annotations are present",
			s.Stats.TotalAnnotations, len(s.Annotations))
	}

	seen := make(map[string]struct{}, len(s.Annotations)+len(s.Events))
	for _, a := range s.Annotations {
		if err := checkID(a.ID, seen); err != nil {
			return fmt.Errorf("annotation: %w", err)
		}
	}
	for _, e := range s.Events {
		if err := checkID(e.ID, seen); err != nil {
			return fmt.Errorf("event: %w", err)
		}
	}
	return nil
}

func checkID(id string, seen map[string]struct{}) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	if _, dup := seen[id]; dup {
		return fmt.Errorf("duplicate id %q", id)
	}
	seen[id] = struct{}{}
	return nil
}
