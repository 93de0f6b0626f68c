package model

import "time"

// Table is a physical dining table.  Capacity is the maximum party size
// the table seats; inactive tables are never offered to guests.
//
// Fields:
//
//	ID        – primary key identifier.
//	Label     – short name shown to staff and on confirmations ("T4", "Patio 2").
//	Capacity  – seats available at the table.
//	IsActive  – whether the table can currently be booked.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Table struct {
	ID        uint64    `json:"id"`         // restaurant_tables.id
	Label     string    `json:"label"`      // restaurant_tables.label
	Capacity  int       `json:"capacity"`   // restaurant_tables.capacity
	IsActive  bool      `json:"is_active"`  // restaurant_tables.is_active
	CreatedAt time.Time `json:"created_at"` // restaurant_tables.created_at
	UpdatedAt time.Time `json:"updated_at"` // restaurant_tables.updated_at
}
