package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/table-reservation/internal/allocator"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// memStore is an in-memory Store.  Transactions are not isolated: reads
// see committed state and InsertReservation re-checks overlap under the
// lock, which is enough to reproduce a lost race.
type memStore struct {
	mu           sync.Mutex
	sched        allocator.Schedule
	tables       []model.Table
	reservations []*model.Reservation
	nextID       uint64
	failInserts  int
	beforeInsert func()
	now          time.Time
}

func newMemStore(sched allocator.Schedule, tables ...model.Table) *memStore {
	return &memStore{sched: sched, tables: tables}
}

func (m *memStore) LoadSchedule(ctx context.Context, date string) (allocator.Schedule, error) {
	return m.sched, nil
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return fn(memTx{m})
}

func (m *memStore) count(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.reservations {
		if r.Status == status {
			n++
		}
	}
	return n
}

type memTx struct{ m *memStore }

func (t memTx) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var n int64
	for _, r := range t.m.reservations {
		if r.Status == model.StatusPending && r.HoldExpiresAt != nil && !r.HoldExpiresAt.After(now) {
			r.Status = model.StatusCancelled
			r.HoldExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (t memTx) EligibleTables(ctx context.Context, party int) ([]model.Table, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var out []model.Table
	for _, tb := range t.m.tables {
		if tb.IsActive && tb.Capacity >= party {
			out = append(out, tb)
		}
	}
	return out, nil
}

func (t memTx) OccupyingReservations(ctx context.Context, date string, iv allocator.Interval, now time.Time) ([]model.Reservation, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var out []model.Reservation
	for _, r := range t.m.reservations {
		if r.Date == date && r.Occupies(now) && iv.Overlaps(allocator.Interval{Start: r.StartsAt, End: r.EndsAt}) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (t memTx) LockTable(ctx context.Context, tableID uint64) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, tb := range t.m.tables {
		if tb.ID == tableID && tb.IsActive {
			return nil
		}
	}
	return ErrConflictOnInsert
}

func (t memTx) CountOverlapping(ctx context.Context, tableID uint64, iv allocator.Interval, now time.Time, excludeID uint64) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.overlapping(tableID, iv, now, excludeID), nil
}

func (m *memStore) overlapping(tableID uint64, iv allocator.Interval, now time.Time, excludeID uint64) int {
	n := 0
	for _, r := range m.reservations {
		if r.TableID == tableID && r.ID != excludeID && r.Occupies(now) &&
			iv.Overlaps(allocator.Interval{Start: r.StartsAt, End: r.EndsAt}) {
			n++
		}
	}
	return n
}

func (t memTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if t.m.beforeInsert != nil {
		t.m.beforeInsert()
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.failInserts > 0 {
		t.m.failInserts--
		return ErrConflictOnInsert
	}
	iv := allocator.Interval{Start: r.StartsAt, End: r.EndsAt}
	if t.m.overlapping(r.TableID, iv, t.m.now, 0) > 0 {
		return ErrConflictOnInsert
	}
	t.m.nextID++
	r.ID = t.m.nextID
	for _, tb := range t.m.tables {
		if tb.ID == r.TableID {
			r.TableLabel = tb.Label
		}
	}
	cp := *r
	t.m.reservations = append(t.m.reservations, &cp)
	return nil
}

func (t memTx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, r := range t.m.reservations {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t memTx) UpdateStatus(ctx context.Context, id uint64, status string, paymentRef *string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, r := range t.m.reservations {
		if r.ID == id {
			r.Status = status
			r.HoldExpiresAt = nil
			if paymentRef != nil {
				r.PaymentRef = paymentRef
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

// twoPartyBarrier blocks the first two callers until both have arrived.
type twoPartyBarrier struct {
	mu sync.Mutex
	n  int
	ch chan struct{}
}

func newTwoPartyBarrier() *twoPartyBarrier { return &twoPartyBarrier{ch: make(chan struct{})} }

func (b *twoPartyBarrier) wait() {
	b.mu.Lock()
	b.n++
	n := b.n
	if n == 2 {
		close(b.ch)
	}
	b.mu.Unlock()
	if n <= 2 {
		<-b.ch
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
