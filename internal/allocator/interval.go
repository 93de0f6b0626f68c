package allocator

import "time"

// Interval is a half-open time range [Start, End).  Two reservations that
// touch end-to-start (19:00-20:30 and 20:30-22:00) do not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two intervals share at least one instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }
