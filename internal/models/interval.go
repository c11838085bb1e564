package models

import "time"

// Interval is a half-open time range [Start, End)
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two half-open intervals intersect.
// Intervals that merely touch (a.End == b.Start) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// IsEmpty reports whether the interval contains no instants
func (i Interval) IsEmpty() bool {
	return !i.Start.Before(i.End)
}

// Duration returns the length of the interval, zero when empty
func (i Interval) Duration() time.Duration {
	if i.IsEmpty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// UTC returns the interval with both bounds normalized to UTC
func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

// Slot is a bookable interval returned by availability queries
type Slot = Interval
