// Package allocator holds the table selection rules for reservations.  It
// is pure: callers load tables, bookings and the schedule from the store,
// and the functions here decide validity and which table to use.
package allocator

import "sort"

// Candidate is a table as seen by the allocator.
type Candidate struct {
	ID       uint64
	Capacity int
	Active   bool
}

// Booking is an existing reservation that occupies a table.
type Booking struct {
	TableID  uint64
	Interval Interval
}

// Available returns every active table that seats party and has no
// booking overlapping want.  The result is ordered by capacity and then
// by table id, so the first element is the best fit.
func Available(tables []Candidate, bookings []Booking, party int, want Interval) []Candidate {
	if party < 1 {
		return nil
	}
	busy := make(map[uint64]bool, len(bookings))
	for _, b := range bookings {
		if b.Interval.Overlaps(want) {
			busy[b.TableID] = true
		}
	}
	out := make([]Candidate, 0, len(tables))
	for _, t := range tables {
		if !t.Active || t.Capacity < party || busy[t.ID] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Capacity != out[j].Capacity {
			return out[i].Capacity < out[j].Capacity
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Choose picks the smallest table that fits, breaking ties on the lowest
// id.  It returns ErrNoAvailability when nothing fits.
func Choose(tables []Candidate, bookings []Booking, party int, want Interval) (Candidate, error) {
	avail := Available(tables, bookings, party, want)
	if len(avail) == 0 {
		return Candidate{}, ErrNoAvailability
	}
	return avail[0], nil
}
