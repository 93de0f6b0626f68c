package allocator

import (
	"fmt"
	"time"
)

// Slot is a requested reservation window: a calendar date, a start time
// on that date and a duration.
type Slot struct {
	Date     time.Time
	Start    Clock
	Duration time.Duration
}

// End returns the clock at which the slot finishes.  It may exceed
// EndOfDay for slots that would run past midnight.
func (s Slot) End() Clock {
	return s.Start + Clock(s.Duration/time.Minute)
}

// Interval anchors the slot on its date.
func (s Slot) Interval() Interval {
	start := s.Start.On(s.Date)
	return Interval{Start: start, End: start.Add(s.Duration)}
}

// ValidateSlot checks the slot against the schedule.  Every failure wraps
// ErrInvalidSlot so callers can match it with errors.Is.
func ValidateSlot(sched Schedule, slot Slot) error {
	if slot.Duration <= 0 || slot.Duration%time.Minute != 0 {
		return fmt.Errorf("%w: duration must be a positive number of minutes", ErrInvalidSlot)
	}
	if slot.Start < 0 || slot.Start >= EndOfDay {
		return fmt.Errorf("%w: start %s out of range", ErrInvalidSlot, slot.Start)
	}
	if slot.End() > EndOfDay {
		return fmt.Errorf("%w: slot runs past midnight", ErrInvalidSlot)
	}
	hours, open := sched.EffectiveHours(slot.Date)
	if !open {
		return fmt.Errorf("%w: closed on %s", ErrInvalidSlot, DateKey(slot.Date))
	}
	if !hours.Contains(slot.Start, slot.End()) {
		return fmt.Errorf("%w: %s-%s is outside opening hours %s-%s",
			ErrInvalidSlot, slot.Start, slot.End(), hours.Open, hours.Close)
	}
	return nil
}
