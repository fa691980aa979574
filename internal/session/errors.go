package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned by Start when a current session already exists.
	ErrSessionActive = errors.New("a session is already active")
	// ErrInvalidTransition is returned when a lifecycle operation is not valid
	// for the session's current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNoActiveSession is returned by Manager operations that need a current session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrNotFound is returned when a session id has no live record and no usable backup.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned when a record cannot be decoded.
	ErrCorrupt = errors.New("session record is corrupt")
	// ErrInvalid is returned when a decoded session fails validation.
	ErrInvalid = errors.New("session failed validation")
)

// TransitionError reports a lifecycle operation attempted from a state that
// does not allow it.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s session in state %s", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// DecodeError is returned when a session record exists but cannot be parsed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "failed to decode session record: " + e.Err.Error()
	}
	return "failed to decode session record " + e.Path + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrCorrupt
}
