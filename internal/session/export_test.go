package session

import "time"

// SetClock replaces the entity clock for the duration of a test.
func SetClock(clock func() time.Time) (restore func()) {
	prev := now
	now = clock
	return func() { now = prev }
}

// Check exposes the validator's reason for tests.
var Check = check
