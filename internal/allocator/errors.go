package allocator

import "errors"

// ErrInvalidSlot is returned when the requested window is not bookable:
// the restaurant is closed that day, the window falls outside the
// effective opening hours, or the window itself is malformed.
var ErrInvalidSlot = errors.New("invalid slot")

// ErrNoAvailability is returned when no active table can seat the party
// for the whole requested window.
var ErrNoAvailability = errors.New("no availability")
