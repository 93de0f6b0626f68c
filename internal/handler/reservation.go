package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/service"
)

// ReservationHandler serves the customer booking endpoints.  All methods
// run behind JWTAuth.
type ReservationHandler struct {
	Service    ReservationService
	Reader     ReservationReader
	Restaurant string
	Log        *logrus.Logger
}

// NewReservationHandler panics on nil dependencies.
func NewReservationHandler(svc ReservationService, reader ReservationReader, restaurant string, log *logrus.Logger) *ReservationHandler {
	if svc == nil || reader == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReservationHandler{Service: svc, Reader: reader, Restaurant: restaurant, Log: log}
}

type reserveReq struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	DurationMin  int    `json:"duration_min"`
	PartySize    int    `json:"party_size"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	Notes        string `json:"notes"`
}

// Create handles POST /v1/reservations.  It answers 201 with the stored
// reservation, 422 for a slot outside opening hours and 409 when no
// table is free.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Service.Reserve(c.Request().Context(), service.ReserveRequest{
		UserID:       actor.UserID,
		Date:         req.Date,
		Time:         req.Time,
		DurationMin:  req.DurationMin,
		PartySize:    req.PartySize,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, err := h.Reader.ListByUser(ctx, actor.UserID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /v1/reservations/:id.  Customers see only their own
// reservations; staff see any.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	res, err := h.load(ctx, id, actor)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ConfirmationPDF handles GET /v1/reservations/:id/confirmation.pdf.
func (h *ReservationHandler) ConfirmationPDF(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	res, err := h.load(ctx, id, actor)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	data, name, err := service.ConfirmationPDF(res, h.Restaurant, h.Service.Location())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(data)))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

// Cancel handles DELETE /v1/reservations/:id.  Cancelling twice answers
// 200 both times.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Service.Cancel(c.Request().Context(), id, actor)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ReservationHandler) load(ctx context.Context, id uint64, actor service.Actor) (*model.Reservation, error) {
	if actor.IsStaff() {
		return h.Reader.GetByID(ctx, id)
	}
	return h.Reader.GetByIDForUser(ctx, id, actor.UserID)
}
