package allocator

import "time"

// Window is a same-day opening range.  Close may be EndOfDay.
type Window struct {
	Open  Clock
	Close Clock
}

// Valid reports whether the window is a non-empty range within one day.
func (w Window) Valid() bool {
	return w.Open >= 0 && w.Close <= EndOfDay && w.Open < w.Close
}

// Contains reports whether [start, end) lies entirely inside the window.
func (w Window) Contains(start, end Clock) bool {
	return start >= w.Open && end <= w.Close
}

// Holiday overrides the weekly rule for one date.  A closed holiday shuts
// the restaurant for the day; otherwise Hours, when set, replaces the
// weekly window.  A holiday that is neither closed nor carries hours
// leaves the weekly rule in force.
type Holiday struct {
	Closed bool
	Hours  *Window
}

// Schedule is everything needed to decide whether a date is open: the
// weekly opening rules and the holiday overrides keyed by DateKey.
type Schedule struct {
	Weekly   map[time.Weekday]Window
	Holidays map[string]Holiday
}

// EffectiveHours returns the opening window for date after applying any
// holiday override.  ok is false when the restaurant is closed that day.
func (s Schedule) EffectiveHours(date time.Time) (w Window, ok bool) {
	if h, found := s.Holidays[DateKey(date)]; found {
		if h.Closed {
			return Window{}, false
		}
		if h.Hours != nil {
			return *h.Hours, h.Hours.Valid()
		}
	}
	w, ok = s.Weekly[date.Weekday()]
	if !ok || !w.Valid() {
		return Window{}, false
	}
	return w, true
}
