package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// TableStore persists restaurant tables.  *repository.TableRepo
// implements it.
type TableStore interface {
	Create(ctx context.Context, t *model.Table) error
	GetByID(ctx context.Context, id uint64) (*model.Table, error)
	List(ctx context.Context, activeOnly bool) ([]model.Table, error)
	Update(ctx context.Context, t *model.Table) error
	Delete(ctx context.Context, id uint64) error
}

// StaffHandler serves the STAFF-only management endpoints.
type StaffHandler struct {
	Tables       TableStore
	Schedule     ScheduleStore
	Reader       ReservationReader
	Service      ReservationService
	Log          *logrus.Logger
	// OnScheduleChange runs after opening hours or holidays change; the
	// server uses it to purge cached opening-hours responses.
	OnScheduleChange func(ctx context.Context)
}

// NewStaffHandler panics on nil dependencies.
func NewStaffHandler(tables TableStore, schedule ScheduleStore, reader ReservationReader, svc ReservationService, log *logrus.Logger) *StaffHandler {
	if tables == nil || schedule == nil || reader == nil || svc == nil {
		panic("nil dependency passed to NewStaffHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StaffHandler{Tables: tables, Schedule: schedule, Reader: reader, Service: svc, Log: log}
}

type tableReq struct {
	Label    string `json:"label"`
	Capacity int    `json:"capacity"`
	IsActive *bool  `json:"is_active"`
}

func (r tableReq) validate() string {
	if strings.TrimSpace(r.Label) == "" || len(r.Label) > 64 {
		return "label is required (max 64 characters)"
	}
	if r.Capacity < 1 || r.Capacity > 100 {
		return "capacity must be between 1 and 100"
	}
	return ""
}

// ListTables handles GET /v1/staff/tables.
func (h *StaffHandler) ListTables(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	tables, err := h.Tables.List(ctx, c.QueryParam("active") == "true")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tables, "count": len(tables)})
}

// CreateTable handles POST /v1/staff/tables.  Labels are unique.
func (h *StaffHandler) CreateTable(c echo.Context) error {
	var req tableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	t := &model.Table{Label: strings.TrimSpace(req.Label), Capacity: req.Capacity, IsActive: true}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Tables.Create(ctx, t); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTable handles PUT /v1/staff/tables/:id.  Omitting is_active
// keeps the current flag.
func (h *StaffHandler) UpdateTable(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	var req tableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	t, err := h.Tables.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	t.Label = strings.TrimSpace(req.Label)
	t.Capacity = req.Capacity
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := h.Tables.Update(ctx, t); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTable handles DELETE /v1/staff/tables/:id.  Tables with booking
// history answer 409; deactivate them instead.
func (h *StaffHandler) DeleteTable(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Tables.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type openingHoursReq struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// PutOpeningHours handles PUT /v1/staff/opening-hours/:weekday where
// weekday is 0 (Sunday) through 6.
func (h *StaffHandler) PutOpeningHours(c echo.Context) error {
	wd, err := strconv.Atoi(c.Param("weekday"))
	if err != nil || wd < 0 || wd > 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "weekday must be 0-6"})
	}
	var req openingHoursReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if _, err := repository.ToWindow(req.Open, req.Close); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "open and close must be HH:MM with open before close"})
	}
	oh := model.OpeningHours{Weekday: wd, Open: req.Open, Close: req.Close}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Schedule.UpsertOpeningHours(ctx, oh); err != nil {
		return respondError(c, h.Log, err)
	}
	h.scheduleChanged(ctx)
	return c.JSON(http.StatusOK, oh)
}

// DeleteOpeningHours handles DELETE /v1/staff/opening-hours/:weekday,
// closing the restaurant on that weekday.
func (h *StaffHandler) DeleteOpeningHours(c echo.Context) error {
	wd, err := strconv.Atoi(c.Param("weekday"))
	if err != nil || wd < 0 || wd > 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "weekday must be 0-6"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Schedule.DeleteOpeningHours(ctx, wd); err != nil {
		return respondError(c, h.Log, err)
	}
	h.scheduleChanged(ctx)
	return c.NoContent(http.StatusNoContent)
}

type holidayReq struct {
	Closed bool    `json:"closed"`
	Open   *string `json:"open"`
	Close  *string `json:"close"`
	Note   *string `json:"note"`
}

// PutHoliday handles PUT /v1/staff/holidays/:date.  A holiday is either
// closed or carries replacement hours.
func (h *StaffHandler) PutHoliday(c echo.Context) error {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	var req holidayReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	hol := model.Holiday{Date: date, Closed: req.Closed, Note: req.Note}
	if !req.Closed {
		if req.Open == nil || req.Close == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "open and close are required unless closed"})
		}
		if _, err := repository.ToWindow(*req.Open, *req.Close); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "open and close must be HH:MM with open before close"})
		}
		hol.Open, hol.Close = req.Open, req.Close
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Schedule.UpsertHoliday(ctx, hol); err != nil {
		return respondError(c, h.Log, err)
	}
	h.scheduleChanged(ctx)
	return c.JSON(http.StatusOK, hol)
}

// DeleteHoliday handles DELETE /v1/staff/holidays/:date.
func (h *StaffHandler) DeleteHoliday(c echo.Context) error {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Schedule.DeleteHoliday(ctx, date); err != nil {
		return respondError(c, h.Log, err)
	}
	h.scheduleChanged(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (h *StaffHandler) scheduleChanged(ctx context.Context) {
	if h.OnScheduleChange != nil {
		h.OnScheduleChange(context.WithoutCancel(ctx))
	}
}

// ListReservations handles GET /v1/staff/reservations?date=&status=.
func (h *StaffHandler) ListReservations(c echo.Context) error {
	date := c.QueryParam("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	status := strings.ToUpper(c.QueryParam("status"))
	switch status {
	case "", model.StatusPending, model.StatusConfirmed, model.StatusCancelled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, err := h.Reader.ListByDate(ctx, date, status)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "items": items, "count": len(items)})
}

type confirmReq struct {
	PaymentRef string `json:"payment_ref"`
}

// ConfirmReservation handles POST /v1/staff/reservations/:id/confirm, the
// callback recording a paid deposit.
func (h *StaffHandler) ConfirmReservation(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Service.Confirm(c.Request().Context(), id, req.PaymentRef)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ExpireHolds handles POST /v1/staff/reservations/expire-holds.
func (h *StaffHandler) ExpireHolds(c echo.Context) error {
	n, err := h.Service.ExpirePending(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
