// Package clock provides the predictor's monotonic source of "now" and
// day-difference arithmetic, plus tolerant parsing of event timestamps.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// Clock abstracts the current instant so tests can freeze time without
// touching the wall clock. Production code uses RealClock; tests use a
// FixedClock or a manually-advanced one.
type Clock interface {
	Now() time.Time
}

// NewRealClock constructs the production Clock, for fx wiring.
func NewRealClock() Clock {
	return RealClock{}
}

// RealClock reports the actual UTC wall-clock time.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports the same instant. Useful for deterministic
// event-processor and reconciler tests.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.At
}

// DaysBetween returns the signed number of days from b to a (a - b),
// expressed as a float so sub-day elapsed spans (e.g. 12 hours) are
// visible to the cycle-length math instead of being rounded to zero.
func DaysBetween(a, b time.Time) float64 {
	return a.Sub(b).Hours() / 24.0
}

// timeLayouts are tried in order. The historical-log layout with a
// 5-digit fractional second comes from ingesting older event exports;
// time.Parse accepts any run of 1-9 fractional digits against ".999999999"
// layouts, so a single layout with nine nines covers 1-9 digits as long
// as the input has at most nine.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an event timestamp, accepting RFC3339 with 1-9
// digits of fractional seconds and defaulting to UTC when the input
// carries no timezone offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Location() == time.UTC || !strings.ContainsAny(s, "Zz+") && !hasOffsetSuffix(s) {
				return t.UTC(), nil
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC3339 with 1-9 fractional digits", s)
}

// hasOffsetSuffix detects a trailing "-HH:MM" offset so ParseTimestamp
// does not mistake it for a missing-timezone date.
func hasOffsetSuffix(s string) bool {
	if len(s) < 6 {
		return false
	}
	tail := s[len(s)-6:]
	return (tail[0] == '-' || tail[0] == '+') && tail[3] == ':'
}
