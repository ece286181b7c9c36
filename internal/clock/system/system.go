// Package system provides the wall clock used for progress timing.
package system

import "time"

// Clock implements bar.Clock using time.Now. Readings keep the monotonic
// component so elapsed times are immune to wall clock steps.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}
