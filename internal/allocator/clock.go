package allocator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day expressed in minutes since local
// midnight.  Valid values run from 0 (00:00) to EndOfDay (24:00); the
// latter is only meaningful as a closing time.
type Clock int

// EndOfDay is midnight at the end of the day, written "24:00".
const EndOfDay Clock = 24 * 60

// ParseClock accepts "HH:MM" and the "HH:MM:SS" form MySQL uses for TIME
// columns.  Seconds must be zero.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("clock %q: seconds not supported", s)
		}
	}
	c := Clock(h*60 + m)
	if h < 0 || c > EndOfDay {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return c, nil
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On anchors the clock on the given calendar date, in the date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, int(c), 0, 0, date.Location())
}

// DateOf truncates t to midnight of its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateKey is the YYYY-MM-DD form used for holiday lookups and the
// reservation_date column.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }
