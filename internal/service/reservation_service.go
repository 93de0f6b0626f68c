package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/allocator"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// EventPublisher delivers reservation lifecycle events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Options tune the booking rules.  Zero values fall back to the defaults
// applied by NewReservationService.
type Options struct {
	Location        *time.Location // restaurant time zone; dates and clocks are read in it
	DefaultDuration time.Duration  // used when a request omits the duration
	MaxDuration     time.Duration  // longest bookable window
	MaxPartySize    int            // larger parties must call the restaurant
	DepositMinParty int            // parties this size or larger need a deposit; 0 disables deposits
	HoldTTL         time.Duration  // how long a PENDING reservation keeps its table
	BookingHorizon  time.Duration  // how far ahead guests may book
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = 90 * time.Minute
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 4 * time.Hour
	}
	if o.MaxPartySize <= 0 {
		o.MaxPartySize = 12
	}
	if o.HoldTTL <= 0 {
		o.HoldTTL = 15 * time.Minute
	}
	if o.BookingHorizon <= 0 {
		o.BookingHorizon = 90 * 24 * time.Hour
	}
	return o
}

// Actor is the authenticated caller of a state transition.
type Actor struct {
	UserID uint64
	Role   string
}

// IsStaff reports whether the actor may act on any reservation.
func (a Actor) IsStaff() bool { return a.Role == model.RoleStaff }

// ReserveRequest is a guest's booking request.  Date is YYYY-MM-DD and
// Time is HH:MM, both in the restaurant's time zone.
type ReserveRequest struct {
	UserID       uint64
	Date         string
	Time         string
	DurationMin  int
	PartySize    int
	ContactName  string
	ContactPhone string
	ContactEmail string
	Notes        string
}

// AvailabilityQuery asks which tables could take a party for a slot.
type AvailabilityQuery struct {
	Date        string
	Time        string
	DurationMin int
	PartySize   int
}

// ReservationService allocates tables to reservation requests and drives
// the PENDING -> CONFIRMED -> CANCELLED lifecycle.
type ReservationService struct {
	store     Store
	publisher EventPublisher
	opts      Options
	log       *logrus.Entry
	now       func() time.Time
}

// NewReservationService builds the service.  publisher and log may be nil.
func NewReservationService(store Store, publisher EventPublisher, opts Options, log *logrus.Logger) *ReservationService {
	if store == nil {
		panic("nil store passed to NewReservationService")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReservationService{
		store:     store,
		publisher: publisher,
		opts:      opts.withDefaults(),
		log:       log.WithField("component", "reservations"),
		now:       time.Now,
	}
}

// Location returns the restaurant time zone.
func (s *ReservationService) Location() *time.Location { return s.opts.Location }

func (s *ReservationService) parseSlot(date, clock string, durationMin int) (allocator.Slot, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), s.opts.Location)
	if err != nil {
		return allocator.Slot{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	c, err := allocator.ParseClock(clock)
	if err != nil {
		return allocator.Slot{}, fmt.Errorf("%w: time must be HH:MM", ErrInvalidRequest)
	}
	dur := s.opts.DefaultDuration
	if durationMin != 0 {
		dur = time.Duration(durationMin) * time.Minute
	}
	if dur <= 0 || dur > s.opts.MaxDuration {
		return allocator.Slot{}, fmt.Errorf("%w: duration must be between 1 and %d minutes",
			ErrInvalidRequest, int(s.opts.MaxDuration/time.Minute))
	}
	return allocator.Slot{Date: d, Start: c, Duration: dur}, nil
}

func (s *ReservationService) checkParty(party int) error {
	if party < 1 {
		return fmt.Errorf("%w: party_size must be at least 1", ErrInvalidRequest)
	}
	if party > s.opts.MaxPartySize {
		return fmt.Errorf("%w: parties above %d must contact the restaurant", ErrInvalidRequest, s.opts.MaxPartySize)
	}
	return nil
}

// checkSlot rejects slots outside the effective opening hours, in the
// past, or beyond the booking horizon.
func (s *ReservationService) checkSlot(ctx context.Context, slot allocator.Slot) error {
	sched, err := s.store.LoadSchedule(ctx, allocator.DateKey(slot.Date))
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	if err := allocator.ValidateSlot(sched, slot); err != nil {
		return err
	}
	now := s.now()
	start := slot.Interval().Start
	if !start.After(now) {
		return fmt.Errorf("%w: slot is in the past", allocator.ErrInvalidSlot)
	}
	if start.After(now.Add(s.opts.BookingHorizon)) {
		return fmt.Errorf("%w: slot is beyond the booking horizon", allocator.ErrInvalidSlot)
	}
	return nil
}

func toCandidates(tables []model.Table) []allocator.Candidate {
	out := make([]allocator.Candidate, 0, len(tables))
	for _, t := range tables {
		out = append(out, allocator.Candidate{ID: t.ID, Capacity: t.Capacity, Active: t.IsActive})
	}
	return out
}

func toBookings(rs []model.Reservation, now time.Time) []allocator.Booking {
	out := make([]allocator.Booking, 0, len(rs))
	for i := range rs {
		if !rs[i].Occupies(now) {
			continue
		}
		out = append(out, allocator.Booking{
			TableID:  rs[i].TableID,
			Interval: allocator.Interval{Start: rs[i].StartsAt, End: rs[i].EndsAt},
		})
	}
	return out
}

// Reserve validates the slot, picks the best free table and stores the
// reservation.  It fails with allocator.ErrInvalidSlot, allocator.ErrNoAvailability
// or ErrInvalidRequest without writing anything.  A lost race is retried
// once; losing twice is reported as no availability.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*model.Reservation, error) {
	if err := s.checkParty(req.PartySize); err != nil {
		return nil, err
	}
	req.ContactName = strings.TrimSpace(req.ContactName)
	req.ContactPhone = strings.TrimSpace(req.ContactPhone)
	req.ContactEmail = strings.ToLower(strings.TrimSpace(req.ContactEmail))
	if req.ContactName == "" || req.ContactPhone == "" {
		return nil, fmt.Errorf("%w: contact_name and contact_phone are required", ErrInvalidRequest)
	}
	if req.ContactEmail != "" && !strings.Contains(req.ContactEmail, "@") {
		return nil, fmt.Errorf("%w: contact_email is not an email address", ErrInvalidRequest)
	}
	slot, err := s.parseSlot(req.Date, req.Time, req.DurationMin)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, slot); err != nil {
		return nil, err
	}
	s.sweepExpiredHolds(ctx)

	var res *model.Reservation
	for attempt := 1; attempt <= 2; attempt++ {
		res, err = s.allocate(ctx, slot, req)
		if !errors.Is(err, ErrConflictOnInsert) {
			break
		}
		s.log.WithFields(logrus.Fields{
			"date": req.Date, "start": req.Time, "party": req.PartySize, "attempt": attempt,
		}).Warn("table taken concurrently")
	}
	if errors.Is(err, ErrConflictOnInsert) {
		return nil, fmt.Errorf("%w: slot was taken concurrently", allocator.ErrNoAvailability)
	}
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID, "table_id": res.TableID, "party": res.PartySize, "status": res.Status,
	}).Info("reservation allocated")
	if res.Status == model.StatusPending {
		s.publish(ctx, queue.EventReservationPending, res)
	} else {
		s.publish(ctx, queue.EventReservationConfirmed, res)
	}
	return res, nil
}

// allocate runs the read-choose-lock-check-insert sequence in one
// transaction.
func (s *ReservationService) allocate(ctx context.Context, slot allocator.Slot, req ReserveRequest) (*model.Reservation, error) {
	iv := slot.Interval()
	date := allocator.DateKey(slot.Date)
	now := s.now().UTC()
	var out *model.Reservation
	err := s.store.InTx(ctx, func(tx Tx) error {
		tables, err := tx.EligibleTables(ctx, req.PartySize)
		if err != nil {
			return fmt.Errorf("load tables: %w", err)
		}
		busy, err := tx.OccupyingReservations(ctx, date, iv, now)
		if err != nil {
			return fmt.Errorf("load reservations: %w", err)
		}
		pick, err := allocator.Choose(toCandidates(tables), toBookings(busy, now), req.PartySize, iv)
		if err != nil {
			return err
		}
		if err := tx.LockTable(ctx, pick.ID); err != nil {
			return err
		}
		n, err := tx.CountOverlapping(ctx, pick.ID, iv, now, 0)
		if err != nil {
			return fmt.Errorf("recheck table: %w", err)
		}
		if n > 0 {
			return ErrConflictOnInsert
		}
		r := &model.Reservation{
			Reference:    uuid.NewString(),
			TableID:      pick.ID,
			UserID:       req.UserID,
			Date:         date,
			StartsAt:     iv.Start.UTC(),
			EndsAt:       iv.End.UTC(),
			PartySize:    req.PartySize,
			Status:       model.StatusConfirmed,
			ContactName:  req.ContactName,
			ContactPhone: req.ContactPhone,
		}
		if req.ContactEmail != "" {
			r.ContactEmail = &req.ContactEmail
		}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			r.Notes = &notes
		}
		if s.opts.DepositMinParty > 0 && req.PartySize >= s.opts.DepositMinParty {
			hold := now.Add(s.opts.HoldTTL)
			r.Status = model.StatusPending
			r.HoldExpiresAt = &hold
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// Availability returns every table that could take the party for the
// requested slot, best fit first.  An empty result is not an error.
func (s *ReservationService) Availability(ctx context.Context, q AvailabilityQuery) ([]model.Table, error) {
	if err := s.checkParty(q.PartySize); err != nil {
		return nil, err
	}
	slot, err := s.parseSlot(q.Date, q.Time, q.DurationMin)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, slot); err != nil {
		return nil, err
	}
	iv := slot.Interval()
	now := s.now().UTC()
	out := make([]model.Table, 0)
	err = s.store.InTx(ctx, func(tx Tx) error {
		tables, err := tx.EligibleTables(ctx, q.PartySize)
		if err != nil {
			return err
		}
		busy, err := tx.OccupyingReservations(ctx, allocator.DateKey(slot.Date), iv, now)
		if err != nil {
			return err
		}
		byID := make(map[uint64]model.Table, len(tables))
		for _, t := range tables {
			byID[t.ID] = t
		}
		for _, c := range allocator.Available(toCandidates(tables), toBookings(busy, now), q.PartySize, iv) {
			out = append(out, byID[c.ID])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel moves a reservation to CANCELLED.  Only the owner or staff may
// cancel, and only before the reservation starts.  Cancelling twice is a
// no-op.
func (s *ReservationService) Cancel(ctx context.Context, id uint64, actor Actor) (*model.Reservation, error) {
	now := s.now()
	var (
		out     *model.Reservation
		changed bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && r.UserID != actor.UserID {
			return repository.ErrForbidden
		}
		out = r
		if r.Status == model.StatusCancelled {
			return nil
		}
		if !now.Before(r.StartsAt) {
			return ErrTooLate
		}
		if err := tx.UpdateStatus(ctx, id, model.StatusCancelled, nil); err != nil {
			return err
		}
		r.Status = model.StatusCancelled
		r.HoldExpiresAt = nil
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.WithFields(logrus.Fields{"reservation_id": id, "by": actor.UserID, "role": actor.Role}).Info("reservation cancelled")
		s.publish(ctx, queue.EventReservationCancelled, out)
	}
	return out, nil
}

// Confirm finalises a PENDING reservation once its deposit is paid.  The
// hold must still be live.  Confirming an already confirmed reservation
// returns it unchanged.
func (s *ReservationService) Confirm(ctx context.Context, id uint64, paymentRef string) (*model.Reservation, error) {
	now := s.now().UTC()
	var (
		out     *model.Reservation
		changed bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out = r
		switch r.Status {
		case model.StatusConfirmed:
			return nil
		case model.StatusCancelled:
			return ErrNotPending
		}
		if r.HoldExpiresAt == nil || !r.HoldExpiresAt.After(now) {
			return ErrHoldExpired
		}
		if err := tx.LockTable(ctx, r.TableID); err != nil {
			return err
		}
		iv := allocator.Interval{Start: r.StartsAt, End: r.EndsAt}
		n, err := tx.CountOverlapping(ctx, r.TableID, iv, now, r.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflictOnInsert
		}
		var ref *string
		if p := strings.TrimSpace(paymentRef); p != "" {
			ref = &p
		}
		if err := tx.UpdateStatus(ctx, id, model.StatusConfirmed, ref); err != nil {
			return err
		}
		r.Status = model.StatusConfirmed
		r.HoldExpiresAt = nil
		if ref != nil {
			r.PaymentRef = ref
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.WithField("reservation_id", id).Info("reservation confirmed")
		s.publish(ctx, queue.EventReservationConfirmed, out)
	}
	return out, nil
}

// ExpirePending cancels PENDING reservations whose hold lapsed.
func (s *ReservationService) ExpirePending(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		n, err = tx.ExpirePending(ctx, s.now().UTC())
		return err
	})
	return n, err
}

// sweepExpiredHolds runs ExpirePending outside the allocation
// transaction.  Expired holds never block allocation, so a failure here
// is only logged.
func (s *ReservationService) sweepExpiredHolds(ctx context.Context) {
	if n, err := s.ExpirePending(ctx); err != nil {
		s.log.WithError(err).Warn("expire pending holds")
	} else if n > 0 {
		s.log.WithField("count", n).Info("expired pending holds")
	}
}

func (s *ReservationService) publish(ctx context.Context, kind string, r *model.Reservation) {
	if s.publisher == nil || r == nil {
		return
	}
	ev := queue.NewReservationEvent(kind, r, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", kind).Warn("publish reservation event")
	}
}
