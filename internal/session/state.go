package session

import (
	"encoding/json"
	"fmt"
)

// StateKind names one of the four lifecycle states.
type StateKind string

const (
	KindActive  StateKind = "Active"
	KindPaused  StateKind = "Paused"
	KindStopped StateKind = "Stopped"
	KindError   StateKind = "Error"
)

// State is the lifecycle state of a Session. Reason is only meaningful for
// KindError.
//
// On disk the unit states are bare strings ("Active") and the error state is
// a single-key object ({"Error": "reason"}).
type State struct {
	Kind   StateKind
	Reason string
}

var (
	StateActive  = State{Kind: KindActive}
	StatePaused  = State{Kind: KindPaused}
	StateStopped = State{Kind: KindStopped}
)

// StateError returns the error state carrying reason.
func StateError(reason string) State {
	return State{Kind: KindError, Reason: reason}
}

func (s State) IsActive() bool  { return s.Kind == KindActive }
func (s State) IsPaused() bool  { return s.Kind == KindPaused }
func (s State) IsStopped() bool { return s.Kind == KindStopped }
func (s State) IsError() bool   { return s.Kind == KindError }

func (s State) String() string {
	if s.Kind == KindError {
		return fmt.Sprintf("Error(%s)", s.Reason)
	}
	return string(s.Kind)
}

func (s State) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindActive, KindPaused, KindStopped:
		return json.Marshal(string(s.Kind))
	case KindError:
		return json.Marshal(map[string]string{string(KindError): s.Reason})
	default:
		return nil, fmt.Errorf("unknown session state %q", s.Kind)
	}
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch StateKind(name) {
		case KindActive, KindPaused, KindStopped:
			*s = State{Kind: StateKind(name)}
			return nil
		}
		return fmt.Errorf("unknown session state %q", name)
	}

	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("session state must be a string or {\"Error\": reason}: %w", err)
	}
	reason, ok := obj[string(KindError)]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("malformed error state: %s", data)
	}
	*s = StateError(reason)
	return nil
}
