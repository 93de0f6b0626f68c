package allocator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 6, 1, hour, min, 0, 0, time.UTC)
}

func span(h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(h1, m1), End: at(h2, m2)}
}

func TestIntervalOverlaps(t *testing.T) {
	base := span(19, 0, 20, 30)
	assert.True(t, base.Overlaps(span(20, 0, 21, 0)))
	assert.True(t, base.Overlaps(span(18, 0, 19, 1)))
	assert.True(t, base.Overlaps(span(19, 15, 19, 45)))
	assert.True(t, base.Overlaps(base))
	assert.False(t, base.Overlaps(span(20, 30, 22, 0)), "touching end-to-start")
	assert.False(t, base.Overlaps(span(17, 0, 19, 0)))
}

func TestChoosePrefersSmallestFittingTable(t *testing.T) {
	tables := []Candidate{
		{ID: 1, Capacity: 8, Active: true},
		{ID: 2, Capacity: 4, Active: true},
		{ID: 3, Capacity: 2, Active: true},
		{ID: 4, Capacity: 4, Active: true},
	}
	got, err := Choose(tables, nil, 3, span(19, 0, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.ID, "capacity 4 with lowest id wins")
}

func TestChooseSkipsBusyAndInactiveTables(t *testing.T) {
	tables := []Candidate{
		{ID: 1, Capacity: 4, Active: false},
		{ID: 2, Capacity: 4, Active: true},
		{ID: 3, Capacity: 6, Active: true},
	}
	bookings := []Booking{{TableID: 2, Interval: span(18, 30, 19, 30)}}
	got, err := Choose(tables, bookings, 4, span(19, 0, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.ID)

	// A booking that ends exactly when ours starts does not block.
	bookings = []Booking{{TableID: 2, Interval: span(17, 30, 19, 0)}}
	got, err = Choose(tables, bookings, 4, span(19, 0, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.ID)
}

func TestChooseNoAvailability(t *testing.T) {
	tables := []Candidate{{ID: 1, Capacity: 4, Active: true}}
	_, err := Choose(tables, nil, 5, span(19, 0, 20, 0))
	assert.ErrorIs(t, err, ErrNoAvailability)

	bookings := []Booking{{TableID: 1, Interval: span(19, 0, 20, 30)}}
	_, err = Choose(tables, bookings, 4, span(19, 0, 20, 30))
	assert.ErrorIs(t, err, ErrNoAvailability)

	_, err = Choose(tables, nil, 0, span(19, 0, 20, 0))
	assert.ErrorIs(t, err, ErrNoAvailability)
}

func TestAvailableOrdering(t *testing.T) {
	tables := []Candidate{
		{ID: 9, Capacity: 6, Active: true},
		{ID: 5, Capacity: 2, Active: true},
		{ID: 7, Capacity: 2, Active: true},
		{ID: 1, Capacity: 6, Active: true},
	}
	got := Available(tables, nil, 2, span(12, 0, 13, 0))
	ids := make([]uint64, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []uint64{5, 7, 1, 9}, ids)
}

// Books random requests one after another through Choose and checks that
// the resulting schedule never double-books and never under-seats.
func TestChooseRandomisedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tables := []Candidate{
		{ID: 1, Capacity: 2, Active: true},
		{ID: 2, Capacity: 2, Active: true},
		{ID: 3, Capacity: 4, Active: true},
		{ID: 4, Capacity: 6, Active: true},
		{ID: 5, Capacity: 8, Active: false},
	}
	capByID := map[uint64]int{}
	for _, tb := range tables {
		capByID[tb.ID] = tb.Capacity
	}
	var bookings []Booking
	for i := 0; i < 500; i++ {
		startMin := 11*60 + 15*rng.Intn(36)
		dur := 30 * (1 + rng.Intn(4))
		party := 1 + rng.Intn(8)
		want := Interval{Start: at(0, startMin), End: at(0, startMin+dur)}
		c, err := Choose(tables, bookings, party, want)
		if err != nil {
			assert.ErrorIs(t, err, ErrNoAvailability)
			continue
		}
		assert.True(t, c.Active)
		assert.GreaterOrEqual(t, capByID[c.ID], party)
		bookings = append(bookings, Booking{TableID: c.ID, Interval: want})
	}
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			if bookings[i].TableID == bookings[j].TableID {
				assert.False(t, bookings[i].Interval.Overlaps(bookings[j].Interval),
					"table %d double-booked", bookings[i].TableID)
			}
		}
	}
}
