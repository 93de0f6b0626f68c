package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationRepo reads and writes the reservations table.  All instants
// are stored in UTC; reservation_date holds the restaurant-local date so
// per-day listings and the overlap index do not depend on time zones.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the handle so callers can open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `r.id, r.reference, r.table_id, t.label, r.user_id, r.reservation_date,
	r.starts_at, r.ends_at, r.party_size, r.status, r.contact_name, r.contact_phone,
	r.contact_email, r.notes, r.hold_expires_at, r.payment_ref, r.created_at, r.updated_at`

const reservationFrom = ` FROM reservations r JOIN restaurant_tables t ON t.id = r.table_id`

// occupyingClause matches rows that block their table: confirmed ones and
// pending ones whose hold has not lapsed.  The single parameter is now.
const occupyingClause = `(r.status = 'CONFIRMED' OR (r.status = 'PENDING' AND r.hold_expires_at > ?))`

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		date      time.Time
		email     sql.NullString
		notes     sql.NullString
		holdUntil sql.NullTime
		payRef    sql.NullString
	)
	err := s.Scan(
		&res.ID, &res.Reference, &res.TableID, &res.TableLabel, &res.UserID, &date,
		&res.StartsAt, &res.EndsAt, &res.PartySize, &res.Status, &res.ContactName, &res.ContactPhone,
		&email, &notes, &holdUntil, &payRef, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Date = date.Format("2006-01-02")
	res.StartsAt = res.StartsAt.UTC()
	res.EndsAt = res.EndsAt.UTC()
	if email.Valid {
		res.ContactEmail = &email.String
	}
	if notes.Valid {
		res.Notes = &notes.String
	}
	if holdUntil.Valid {
		h := holdUntil.Time.UTC()
		res.HoldExpiresAt = &h
	}
	if payRef.Valid {
		res.PaymentRef = &payRef.String
	}
	return &res, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

// CreateTx inserts a reservation within the caller's transaction and
// reloads the stored row into res.  A unique-key violation surfaces as
// ErrConflict.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(reference, table_id, user_id, reservation_date, starts_at, ends_at, party_size, status,
		 contact_name, contact_phone, contact_email, notes, hold_expires_at, payment_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.Reference, res.TableID, res.UserID, res.Date, res.StartsAt.UTC(), res.EndsAt.UTC(),
		res.PartySize, res.Status, res.ContactName, res.ContactPhone,
		nullString(res.ContactEmail), nullString(res.Notes), nullTime(res.HoldExpiresAt), nullString(res.PaymentRef),
	)
	if err != nil {
		if IsConflict(err) {
			return errors.Join(ErrConflict, err)
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+reservationFrom+` WHERE r.id = ?`, id)
	got, err := scanReservation(row)
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

// ListOccupyingTx returns reservations on date whose window overlaps
// [start, end) and that still block their table at now.
func (r *ReservationRepo) ListOccupyingTx(ctx context.Context, tx *sql.Tx, date string, start, end, now time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + reservationFrom + `
		WHERE r.reservation_date = ? AND r.starts_at < ? AND r.ends_at > ? AND ` + occupyingClause + `
		ORDER BY r.table_id, r.starts_at`
	rows, err := tx.QueryContext(ctx, q, date, end.UTC(), start.UTC(), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// CountOverlappingTx counts reservations other than excludeID that block
// tableID somewhere in [start, end).  It is the final guard before a
// write and must run after the table row has been locked.
func (r *ReservationRepo) CountOverlappingTx(ctx context.Context, tx *sql.Tx, tableID uint64, start, end, now time.Time, excludeID uint64) (int, error) {
	q := `SELECT COUNT(*) FROM reservations r
		WHERE r.table_id = ? AND r.id <> ? AND r.starts_at < ? AND r.ends_at > ? AND ` + occupyingClause
	var n int
	err := tx.QueryRowContext(ctx, q, tableID, excludeID, end.UTC(), start.UTC(), now.UTC()).Scan(&n)
	return n, err
}

// GetForUpdateTx loads a reservation and locks its row.  It returns
// ErrNotFound when the reservation does not exist.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+reservationFrom+` WHERE r.id = ? FOR UPDATE`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// UpdateStatusTx moves a reservation to status.  Leaving PENDING clears
// the hold; a non-nil paymentRef is recorded alongside.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, paymentRef *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, hold_expires_at = NULL, payment_ref = COALESCE(?, payment_ref), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, nullString(paymentRef), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpirePendingTx cancels every PENDING reservation whose hold lapsed at
// or before now and returns how many rows changed.
func (r *ReservationRepo) ExpirePendingTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations
		 SET status = 'CANCELLED', hold_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE status = 'PENDING' AND hold_expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByID returns a reservation with its table label, or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+reservationFrom+` WHERE r.id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// GetByIDForUser returns the reservation only when it belongs to userID.
// A reservation owned by someone else yields ErrForbidden.
func (r *ReservationRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, ErrForbidden
	}
	return res, nil
}

// ListByUser returns a user's reservations, upcoming first by start time.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.list(ctx, ` WHERE r.user_id = ? ORDER BY r.starts_at DESC`, userID)
}

// ListByDate returns all reservations on a local date.  An empty status
// matches every status.
func (r *ReservationRepo) ListByDate(ctx context.Context, date, status string) ([]model.Reservation, error) {
	if status == "" {
		return r.list(ctx, ` WHERE r.reservation_date = ? ORDER BY r.starts_at, r.table_id`, date)
	}
	return r.list(ctx, ` WHERE r.reservation_date = ? AND r.status = ? ORDER BY r.starts_at, r.table_id`, date, status)
}

func (r *ReservationRepo) list(ctx context.Context, where string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+reservationColumns+reservationFrom+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
