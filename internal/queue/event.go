// Package queue defines the reservation events exchanged over the message
// broker together with their publisher and consumer.
package queue

import (
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Event types carried in ReservationEvent.Type.
const (
	EventReservationPending   = "reservation.pending"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationQueue is the durable queue all reservation events go to.
const ReservationQueue = "reservation.events"

// ReservationEvent is published whenever a reservation is created or
// changes status.  It carries enough information for downstream consumers
// to notify the guest or feed analytics without querying the database.
// Timestamps are RFC 3339 in UTC.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	Reference     string `json:"reference"`
	UserID        uint64 `json:"user_id"`
	TableID       uint64 `json:"table_id"`
	TableLabel    string `json:"table_label"`
	PartySize     int    `json:"party_size"`
	Date          string `json:"date"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent snapshots r into an event of the given type.
func NewReservationEvent(kind string, r *model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          kind,
		ReservationID: r.ID,
		Reference:     r.Reference,
		UserID:        r.UserID,
		TableID:       r.TableID,
		TableLabel:    r.TableLabel,
		PartySize:     r.PartySize,
		Date:          r.Date,
		StartsAt:      r.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        r.EndsAt.UTC().Format(time.RFC3339),
		Status:        r.Status,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
