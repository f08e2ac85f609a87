// Package system provides the wall clock used for archive records.
package system

import "time"

// Clock implements snapshot.Clock. Times are UTC and truncated to the
// microsecond precision Postgres TIMESTAMPTZ keeps, so a stored record reads
// back equal to the one that was written.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
