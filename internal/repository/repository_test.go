package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var (
	tableCols       = []string{"id", "label", "capacity", "is_active", "created_at", "updated_at"}
	reservationCols = []string{"id", "reference", "table_id", "label", "user_id", "reservation_date",
		"starts_at", "ends_at", "party_size", "status", "contact_name", "contact_phone",
		"contact_email", "notes", "hold_expires_at", "payment_ref", "created_at", "updated_at"}
	ts = time.Date(2026, 5, 30, 12, 0, 0, 0, time.UTC)
)

func reservationRow(id uint64, status string, hold driver.Value) []driver.Value {
	start := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	return []driver.Value{id, "ref-" + status, uint64(1), "T1", uint64(3), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		start, start.Add(90 * time.Minute), 4, status, "Ada", "123", nil, "window seat", hold, nil, ts, ts}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsConflict(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsConflict(&mysql.MySQLError{Number: 1205}))
	assert.True(t, IsConflict(&mysql.MySQLError{Number: 1451}))
	assert.True(t, IsConflict(errors.Join(ErrConflict, errors.New("x"))))
	assert.False(t, IsConflict(&mysql.MySQLError{Number: 1146}))
	assert.False(t, IsConflict(nil))
	assert.False(t, IsConflict(sql.ErrNoRows))
}

func TestTableCreateDuplicateLabel(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTableRepo(db)

	mock.ExpectExec("INSERT INTO restaurant_tables").
		WithArgs("T1", 4, true).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.Table{Label: "T1", Capacity: 4, IsActive: true})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTableCreateReloads(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTableRepo(db)

	mock.ExpectExec("INSERT INTO restaurant_tables").
		WithArgs("Patio", 6, true).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("SELECT .* FROM restaurant_tables WHERE id = ?").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(tableCols).AddRow(7, "Patio", 6, true, ts, ts))

	tb := &model.Table{Label: "Patio", Capacity: 6, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), tb))
	assert.Equal(t, uint64(7), tb.ID)
	assert.Equal(t, ts, tb.CreatedAt)
}

func TestTableDeleteWithReservations(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTableRepo(db)

	mock.ExpectExec("DELETE FROM restaurant_tables").WithArgs(uint64(2)).
		WillReturnError(&mysql.MySQLError{Number: 1451})
	mock.ExpectExec("DELETE FROM restaurant_tables").WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrConflict)
	assert.ErrorIs(t, repo.Delete(context.Background(), 3), ErrNotFound)
}

func TestEligibleAndLock(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTableRepo(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE is_active = 1 AND capacity >= ?").WithArgs(4).
		WillReturnRows(sqlmock.NewRows(tableCols).
			AddRow(2, "A", 4, true, ts, ts).
			AddRow(5, "B", 6, true, ts, ts))
	mock.ExpectQuery("FOR UPDATE").WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery("FOR UPDATE").WithArgs(uint64(5)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	tables, err := repo.ListEligibleTx(ctx, tx, 4)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "A", tables[0].Label)

	assert.NoError(t, repo.LockTx(ctx, tx, 2))
	assert.ErrorIs(t, repo.LockTx(ctx, tx, 5), ErrConflict)
	require.NoError(t, tx.Rollback())
}

func TestReservationCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = repo.CreateTx(ctx, tx, &model.Reservation{
		Reference: "r", TableID: 1, UserID: 3, Date: "2026-06-01",
		StartsAt: start, EndsAt: start.Add(time.Hour), PartySize: 2, Status: model.StatusConfirmed,
		ContactName: "Ada", ContactPhone: "1",
	})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())
}

func TestListOccupyingPassesWindowAndNow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	hold := ts.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("r.starts_at < \\? AND r.ends_at > \\?").
		WithArgs("2026-06-01", end, start, ts).
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow(reservationRow(1, model.StatusConfirmed, nil)...).
			AddRow(reservationRow(2, model.StatusPending, hold)...))
	mock.ExpectCommit()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	got, err := repo.ListOccupyingTx(ctx, tx, "2026-06-01", start, end, ts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-06-01", got[0].Date)
	assert.Equal(t, "T1", got[0].TableLabel)
	require.NotNil(t, got[0].Notes)
	assert.Nil(t, got[0].ContactEmail)
	require.NotNil(t, got[1].HoldExpiresAt)
	assert.Equal(t, hold, *got[1].HoldExpiresAt)
	require.NoError(t, tx.Commit())
}

func TestUpdateStatusAndExpire(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	ctx := context.Background()
	ref := "pay_1"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservations").
		WithArgs(model.StatusConfirmed, sql.NullString{String: ref, Valid: true}, uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations").
		WithArgs(model.StatusCancelled, sql.NullString{}, uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("WHERE status = 'PENDING' AND hold_expires_at <= ?").
		WithArgs(ts).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(ctx, tx, 4, model.StatusConfirmed, &ref))
	assert.ErrorIs(t, repo.UpdateStatusTx(ctx, tx, 99, model.StatusCancelled, nil), ErrNotFound)
	n, err := repo.ExpirePendingTx(ctx, tx, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, tx.Commit())
}

func TestGetByIDForUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("WHERE r.id = ?").WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(reservationRow(1, model.StatusConfirmed, nil)...))
	}
	mock.ExpectQuery("WHERE r.id = ?").WithArgs(uint64(2)).WillReturnError(sql.ErrNoRows)

	r, err := repo.GetByIDForUser(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.ID)

	_, err = repo.GetByIDForUser(ctx, 1, 4)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = repo.GetByIDForUser(ctx, 2, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSchedule(t *testing.T) {
	db, mock := newMock(t)
	repo := NewScheduleRepo(db)

	mock.ExpectQuery("FROM opening_hours").
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "open_time", "close_time"}).
			AddRow(1, "11:00:00", "22:00:00").
			AddRow(5, "12:00:00", "23:30:00"))
	mock.ExpectQuery("FROM holidays WHERE holiday_date = ?").WithArgs("2026-06-05").
		WillReturnRows(sqlmock.NewRows([]string{"holiday_date", "closed", "open_time", "close_time", "note"}).
			AddRow(time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC), false, "17:00:00", "21:00:00", "private event"))

	sched, err := repo.LoadSchedule(context.Background(), "2026-06-05")
	require.NoError(t, err)
	require.Len(t, sched.Weekly, 2)
	assert.Equal(t, "11:00", sched.Weekly[time.Monday].Open.String())
	h, ok := sched.Holidays["2026-06-05"]
	require.True(t, ok)
	require.NotNil(t, h.Hours)
	assert.Equal(t, "17:00", h.Hours.Open.String())
	assert.Equal(t, "21:00", h.Hours.Close.String())
}

func TestLoadScheduleWithoutHoliday(t *testing.T) {
	db, mock := newMock(t)
	repo := NewScheduleRepo(db)

	mock.ExpectQuery("FROM opening_hours").
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "open_time", "close_time"}).AddRow(1, "11:00:00", "22:00:00"))
	mock.ExpectQuery("FROM holidays").WithArgs("2026-06-01").WillReturnError(sql.ErrNoRows)

	sched, err := repo.LoadSchedule(context.Background(), "2026-06-01")
	require.NoError(t, err)
	assert.Empty(t, sched.Holidays)
}

func TestToWindowRejectsEmpty(t *testing.T) {
	_, err := ToWindow("22:00", "11:00")
	assert.Error(t, err)
	w, err := ToWindow("11:00:00", "24:00")
	require.NoError(t, err)
	assert.Equal(t, "24:00", w.Close.String())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("ada@example.com", sqlmock.AnyArg(), model.RoleCustomer).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	_, err := repo.Create(context.Background(), " Ada@Example.com ", "tablefor2", model.RoleCustomer, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("hash", ts).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(uint64(3)))
	mock.ExpectQuery("FROM refresh_tokens").WithArgs("gone", ts).
		WillReturnError(sql.ErrNoRows)

	id, err := repo.ValidateRefresh(context.Background(), "hash", ts)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
	_, err = repo.ValidateRefresh(context.Background(), "gone", ts)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
