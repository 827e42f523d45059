// Package system provides a real clock implementation.
package system

import "time"

// Clock implements crawler.Clock using time.Now in a fixed location.
// Artifact names are stamped with the operator's wall clock, so the
// default location is time.Local.
type Clock struct {
	loc *time.Location
}

// New creates a Clock in time.Local.
func New() *Clock {
	return &Clock{loc: time.Local}
}

// NewIn creates a Clock reporting times in loc.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
