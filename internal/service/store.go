package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/allocator"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// Tx is the unit of work the reservation service runs its allocation
// steps in.  Implementations must give it serialisable semantics per
// table: once LockTable returns, no other Tx can insert or confirm a
// reservation on that table until this one ends.
type Tx interface {
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	EligibleTables(ctx context.Context, party int) ([]model.Table, error)
	OccupyingReservations(ctx context.Context, date string, iv allocator.Interval, now time.Time) ([]model.Reservation, error)
	LockTable(ctx context.Context, tableID uint64) error
	CountOverlapping(ctx context.Context, tableID uint64, iv allocator.Interval, now time.Time, excludeID uint64) (int, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id uint64, status string, paymentRef *string) error
}

// Store is the persistence the reservation service depends on.
type Store interface {
	LoadSchedule(ctx context.Context, date string) (allocator.Schedule, error)
	// InTx runs fn in one transaction, committing when fn returns nil and
	// rolling back otherwise.  Write conflicts detected by the store
	// surface as ErrConflictOnInsert.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// SQLStore implements Store on MySQL through the repositories.
type SQLStore struct {
	db           *sql.DB
	tables       *repository.TableRepo
	reservations *repository.ReservationRepo
	schedule     *repository.ScheduleRepo
	txOpts       *sql.TxOptions
}

// NewSQLStore wires the repositories into a Store.  All dependencies must
// be non-nil.
func NewSQLStore(db *sql.DB, tables *repository.TableRepo, reservations *repository.ReservationRepo, schedule *repository.ScheduleRepo) *SQLStore {
	if db == nil || tables == nil || reservations == nil || schedule == nil {
		panic("nil dependency passed to NewSQLStore")
	}
	return &SQLStore{
		db: db, tables: tables, reservations: reservations, schedule: schedule,
		txOpts: &sql.TxOptions{Isolation: sql.LevelSerializable},
	}
}

func (s *SQLStore) LoadSchedule(ctx context.Context, date string) (allocator.Schedule, error) {
	return s.schedule.LoadSchedule(ctx, date)
}

// InTx opens a SERIALIZABLE transaction.  Deadlocks, lock timeouts and
// duplicate keys raised inside fn or at commit are reported as
// ErrConflictOnInsert so the caller can retry.
func (s *SQLStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		if repository.IsConflict(err) && !errors.Is(err, ErrConflictOnInsert) {
			return errors.Join(ErrConflictOnInsert, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if repository.IsConflict(err) {
			return errors.Join(ErrConflictOnInsert, err)
		}
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

type sqlTx struct {
	tx *sql.Tx
	s  *SQLStore
}

func (t *sqlTx) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	return t.s.reservations.ExpirePendingTx(ctx, t.tx, now)
}

func (t *sqlTx) EligibleTables(ctx context.Context, party int) ([]model.Table, error) {
	return t.s.tables.ListEligibleTx(ctx, t.tx, party)
}

func (t *sqlTx) OccupyingReservations(ctx context.Context, date string, iv allocator.Interval, now time.Time) ([]model.Reservation, error) {
	return t.s.reservations.ListOccupyingTx(ctx, t.tx, date, iv.Start, iv.End, now)
}

func (t *sqlTx) LockTable(ctx context.Context, tableID uint64) error {
	return t.s.tables.LockTx(ctx, t.tx, tableID)
}

func (t *sqlTx) CountOverlapping(ctx context.Context, tableID uint64, iv allocator.Interval, now time.Time, excludeID uint64) (int, error) {
	return t.s.reservations.CountOverlappingTx(ctx, t.tx, tableID, iv.Start, iv.End, now, excludeID)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.reservations.CreateTx(ctx, t.tx, r)
}

func (t *sqlTx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) UpdateStatus(ctx context.Context, id uint64, status string, paymentRef *string) error {
	return t.s.reservations.UpdateStatusTx(ctx, t.tx, id, status, paymentRef)
}
