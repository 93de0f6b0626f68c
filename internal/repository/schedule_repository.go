package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/allocator"
	"github.com/iliyamo/table-reservation/internal/model"
)

// ScheduleRepo stores weekly opening hours and holiday overrides.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a ScheduleRepo bound to db.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// ListOpeningHours returns the weekly rules ordered by weekday.  Days
// without a row are closed.
func (r *ScheduleRepo) ListOpeningHours(ctx context.Context) ([]model.OpeningHours, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT weekday, open_time, close_time FROM opening_hours ORDER BY weekday`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.OpeningHours, 0, 7)
	for rows.Next() {
		var oh model.OpeningHours
		if err := rows.Scan(&oh.Weekday, &oh.Open, &oh.Close); err != nil {
			return nil, err
		}
		oh.Open, oh.Close = trimSeconds(oh.Open), trimSeconds(oh.Close)
		out = append(out, oh)
	}
	return out, rows.Err()
}

// UpsertOpeningHours sets the rule for one weekday.
func (r *ScheduleRepo) UpsertOpeningHours(ctx context.Context, oh model.OpeningHours) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO opening_hours (weekday, open_time, close_time) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE open_time = VALUES(open_time), close_time = VALUES(close_time)`,
		oh.Weekday, oh.Open, oh.Close)
	return err
}

// DeleteOpeningHours closes a weekday.
func (r *ScheduleRepo) DeleteOpeningHours(ctx context.Context, weekday int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM opening_hours WHERE weekday = ?`, weekday)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanHoliday(s rowScanner) (model.Holiday, error) {
	var (
		h           model.Holiday
		date        time.Time
		open, close sql.NullString
		note        sql.NullString
	)
	if err := s.Scan(&date, &h.Closed, &open, &close, &note); err != nil {
		return h, err
	}
	h.Date = date.Format("2006-01-02")
	if open.Valid {
		v := trimSeconds(open.String)
		h.Open = &v
	}
	if close.Valid {
		v := trimSeconds(close.String)
		h.Close = &v
	}
	if note.Valid {
		h.Note = &note.String
	}
	return h, nil
}

// ListHolidays returns overrides between from and to inclusive
// (YYYY-MM-DD).
func (r *ScheduleRepo) ListHolidays(ctx context.Context, from, to string) ([]model.Holiday, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT holiday_date, closed, open_time, close_time, note FROM holidays
		 WHERE holiday_date BETWEEN ? AND ? ORDER BY holiday_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Holiday, 0)
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertHoliday creates or replaces the override for h.Date.
func (r *ScheduleRepo) UpsertHoliday(ctx context.Context, h model.Holiday) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO holidays (holiday_date, closed, open_time, close_time, note) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE closed = VALUES(closed), open_time = VALUES(open_time),
		   close_time = VALUES(close_time), note = VALUES(note)`,
		h.Date, h.Closed, nullString(h.Open), nullString(h.Close), nullString(h.Note))
	return err
}

// DeleteHoliday removes the override for date.
func (r *ScheduleRepo) DeleteHoliday(ctx context.Context, date string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE holiday_date = ?`, date)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadSchedule builds the allocator view for one date: all weekly rules
// plus the holiday override for that date, if any.
func (r *ScheduleRepo) LoadSchedule(ctx context.Context, date string) (allocator.Schedule, error) {
	sched := allocator.Schedule{
		Weekly:   make(map[time.Weekday]allocator.Window, 7),
		Holidays: make(map[string]allocator.Holiday, 1),
	}
	hours, err := r.ListOpeningHours(ctx)
	if err != nil {
		return sched, fmt.Errorf("load opening hours: %w", err)
	}
	for _, oh := range hours {
		w, err := ToWindow(oh.Open, oh.Close)
		if err != nil {
			return sched, fmt.Errorf("opening hours weekday %d: %w", oh.Weekday, err)
		}
		sched.Weekly[time.Weekday(oh.Weekday)] = w
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT holiday_date, closed, open_time, close_time, note FROM holidays WHERE holiday_date = ?`, date)
	h, err := scanHoliday(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sched, nil
	case err != nil:
		return sched, fmt.Errorf("load holiday: %w", err)
	}
	entry := allocator.Holiday{Closed: h.Closed}
	if !h.Closed && h.Open != nil && h.Close != nil {
		w, err := ToWindow(*h.Open, *h.Close)
		if err != nil {
			return sched, fmt.Errorf("holiday %s: %w", h.Date, err)
		}
		entry.Hours = &w
	}
	sched.Holidays[h.Date] = entry
	return sched, nil
}

// ToWindow parses an open/close pair into a valid allocator window.
func ToWindow(open, close string) (allocator.Window, error) {
	o, err := allocator.ParseClock(open)
	if err != nil {
		return allocator.Window{}, err
	}
	c, err := allocator.ParseClock(close)
	if err != nil {
		return allocator.Window{}, err
	}
	w := allocator.Window{Open: o, Close: c}
	if !w.Valid() {
		return allocator.Window{}, fmt.Errorf("window %s-%s is empty", open, close)
	}
	return w, nil
}

// trimSeconds turns MySQL's HH:MM:SS into HH:MM.
func trimSeconds(s string) string {
	if len(s) == 8 && s[5] == ':' {
		return s[:5]
	}
	return s
}
