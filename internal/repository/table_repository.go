package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/table-reservation/internal/model"
)

// TableRepo provides CRUD operations for restaurant tables and the
// transactional lookups used by the allocator.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo returns a TableRepo bound to db.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// DB exposes the handle so callers can open transactions spanning repos.
func (r *TableRepo) DB() *sql.DB { return r.db }

const tableColumns = `id, label, capacity, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(s rowScanner) (model.Table, error) {
	var t model.Table
	err := s.Scan(&t.ID, &t.Label, &t.Capacity, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Create inserts a table and reloads it so timestamps are populated.  A
// duplicate label yields ErrConflict.
func (r *TableRepo) Create(ctx context.Context, t *model.Table) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO restaurant_tables (label, capacity, is_active) VALUES (?, ?, ?)`,
		t.Label, t.Capacity, t.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("table %q: %w", t.Label, ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = *got
	return nil
}

// GetByID returns a single table or ErrNotFound.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.Table, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = ?`, id)
	t, err := scanTable(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns all tables ordered by id.  When activeOnly is set,
// inactive tables are omitted.
func (r *TableRepo) List(ctx context.Context, activeOnly bool) ([]model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM restaurant_tables`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update replaces label, capacity and the active flag.
func (r *TableRepo) Update(ctx context.Context, t *model.Table) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE restaurant_tables SET label = ?, capacity = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.Label, t.Capacity, t.IsActive, t.ID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("table %q: %w", t.Label, ErrConflict)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when nothing changed; tell the two
		// cases apart with a lookup.
		if _, err := r.GetByID(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a table.  Tables that still have reservations cannot be
// removed (the foreign key rejects it) and yield ErrConflict; deactivate
// them instead.
func (r *TableRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM restaurant_tables WHERE id = ?`, id)
	if err != nil {
		if IsConflict(err) {
			return fmt.Errorf("table %d has reservations: %w", id, ErrConflict)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEligibleTx returns active tables seating at least party guests,
// smallest first.
func (r *TableRepo) ListEligibleTx(ctx context.Context, tx *sql.Tx, party int) ([]model.Table, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+tableColumns+` FROM restaurant_tables
		 WHERE is_active = 1 AND capacity >= ?
		 ORDER BY capacity, id`, party)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LockTx takes a row lock on the table for the rest of the transaction.
// Every booking path locks the table before its final overlap check, so
// concurrent bookings of the same table serialise here.  A table that
// disappeared or was deactivated since it was read yields ErrConflict.
func (r *TableRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM restaurant_tables WHERE id = ? AND is_active = 1 FOR UPDATE`, id).Scan(&got)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("table %d no longer bookable: %w", id, ErrConflict)
		}
		return err
	}
	return nil
}
