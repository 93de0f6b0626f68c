package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/service"
)

// ScheduleStore persists opening hours and holidays.
// *repository.ScheduleRepo implements it.
type ScheduleStore interface {
	ListOpeningHours(ctx context.Context) ([]model.OpeningHours, error)
	UpsertOpeningHours(ctx context.Context, oh model.OpeningHours) error
	DeleteOpeningHours(ctx context.Context, weekday int) error
	ListHolidays(ctx context.Context, from, to string) ([]model.Holiday, error)
	UpsertHoliday(ctx context.Context, h model.Holiday) error
	DeleteHoliday(ctx context.Context, date string) error
}

// PublicHandler serves unauthenticated browsing: opening hours and table
// availability.
type PublicHandler struct {
	Service  ReservationService
	Schedule ScheduleStore
	Log      *logrus.Logger
	now      func() time.Time
}

// NewPublicHandler panics on nil dependencies.
func NewPublicHandler(svc ReservationService, schedule ScheduleStore, log *logrus.Logger) *PublicHandler {
	if svc == nil || schedule == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PublicHandler{Service: svc, Schedule: schedule, Log: log, now: time.Now}
}

// OpeningHours handles GET /v1/opening-hours.  It returns the weekly rules
// and the holidays of the next `days` days (default 30, max 366).
func (h *PublicHandler) OpeningHours(c echo.Context) error {
	days := 30
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 366 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be between 1 and 366"})
		}
		days = n
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	weekly, err := h.Schedule.ListOpeningHours(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	from := h.now().In(h.Service.Location())
	to := from.AddDate(0, 0, days)
	holidays, err := h.Schedule.ListHolidays(ctx, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"timezone": h.Service.Location().String(),
		"weekly":   weekly,
		"holidays": holidays,
	})
}

// Availability handles GET /v1/availability?date=&time=&party_size=&duration_min=.
// It lists the tables that could take the party, best fit first.
func (h *PublicHandler) Availability(c echo.Context) error {
	party, err := strconv.Atoi(c.QueryParam("party_size"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "party_size is required"})
	}
	duration := 0
	if v := c.QueryParam("duration_min"); v != "" {
		if duration, err = strconv.Atoi(v); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid duration_min"})
		}
	}
	tables, err := h.Service.Availability(c.Request().Context(), service.AvailabilityQuery{
		Date:        c.QueryParam("date"),
		Time:        c.QueryParam("time"),
		DurationMin: duration,
		PartySize:   party,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"available": len(tables) > 0,
		"tables":    tables,
	})
}
