package service

import "errors"

// ErrConflictOnInsert means another transaction booked the chosen table
// between our read and our write.  Reserve retries once before giving up
// with allocator.ErrNoAvailability.
var ErrConflictOnInsert = errors.New("conflict on insert")

// ErrInvalidRequest wraps malformed input (bad date, bad party size).
var ErrInvalidRequest = errors.New("invalid request")

// ErrTooLate is returned when cancelling a reservation whose start time
// has already passed.
var ErrTooLate = errors.New("reservation already started")

// ErrHoldExpired is returned when confirming a PENDING reservation whose
// table hold has lapsed.
var ErrHoldExpired = errors.New("reservation hold expired")

// ErrNotPending is returned when confirming a reservation that was
// cancelled.
var ErrNotPending = errors.New("reservation is not pending")
