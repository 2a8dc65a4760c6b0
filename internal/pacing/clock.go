// Package pacing implements the pacing reconciliation core: calendar
// proration of planned schedules into expected-to-date figures and the
// under/on/over classification of actuals against them.
package pacing

import "time"

// Clock computes "today"/"yesterday" references in one fixed business
// timezone. Every as-of computation in the engine goes through a Clock so a
// server running in a different timezone cannot shift day boundaries.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a clock bound to the named business timezone
func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewClockAt creates a clock with a fixed now function, for tests
func NewClockAt(loc *time.Location, now func() time.Time) *Clock {
	return &Clock{loc: loc, now: now}
}

// Location returns the business timezone
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Today returns the current calendar day in the business timezone
func (c *Clock) Today() time.Time {
	return DateOnly(c.now().In(c.loc))
}

// Yesterday returns the previous calendar day in the business timezone
func (c *Clock) Yesterday() time.Time {
	return c.Today().AddDate(0, 0, -1)
}

// DateOnly strips the time-of-day portion, keeping the calendar day.
// The result is anchored in UTC so day arithmetic is immune to DST
// transitions in the source location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetweenInclusive returns the number of calendar days from start to end,
// counting both endpoints. Returns 0 when end precedes start.
func DaysBetweenInclusive(start, end time.Time) int {
	s, e := DateOnly(start), DateOnly(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// SameOrAfter reports whether day a is on or after day b
func SameOrAfter(a, b time.Time) bool {
	return !DateOnly(a).Before(DateOnly(b))
}

// SameOrBefore reports whether day a is on or before day b
func SameOrBefore(a, b time.Time) bool {
	return !DateOnly(a).After(DateOnly(b))
}

// MonthBounds returns the first and last calendar day of a month
func MonthBounds(year int, month int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}
