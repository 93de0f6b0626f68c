package model

import "time"

// Reservation statuses.  A reservation starts PENDING when a deposit is
// required and CONFIRMED otherwise; either may later become CANCELLED.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

// Reservation records a party's booking of one table for a time window
// on a single date.  StartsAt and EndsAt are absolute instants (stored in
// UTC); Date is the restaurant-local calendar date of the booking.
//
// Fields:
//
//	ID            – primary key identifier.
//	Reference     – public confirmation code (UUID).
//	TableID       – table assigned by the allocator.
//	TableLabel    – label of the assigned table, filled on reads.
//	UserID        – user who made the reservation.
//	Date          – local date, YYYY-MM-DD.
//	StartsAt      – start of the booked window.
//	EndsAt        – end of the booked window (exclusive).
//	PartySize     – number of guests.
//	Status        – PENDING, CONFIRMED or CANCELLED.
//	ContactName   – guest name.
//	ContactPhone  – guest phone number.
//	ContactEmail  – guest email, optional.
//	Notes         – free text from the guest.
//	HoldExpiresAt – for PENDING reservations, when the table hold lapses.
//	PaymentRef    – deposit payment reference, if any.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Reservation struct {
	ID            uint64     `json:"id"`
	Reference     string     `json:"reference"`
	TableID       uint64     `json:"table_id"`
	TableLabel    string     `json:"table_label,omitempty"`
	UserID        uint64     `json:"user_id"`
	Date          string     `json:"date"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        time.Time  `json:"ends_at"`
	PartySize     int        `json:"party_size"`
	Status        string     `json:"status"`
	ContactName   string     `json:"contact_name"`
	ContactPhone  string     `json:"contact_phone"`
	ContactEmail  *string    `json:"contact_email,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	PaymentRef    *string    `json:"payment_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Occupies reports whether the reservation blocks its table at now:
// confirmed reservations always do, pending ones until their hold lapses.
func (r *Reservation) Occupies(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
	}
	return false
}
