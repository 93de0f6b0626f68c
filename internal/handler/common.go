package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/allocator"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/service"
)

// ReservationService is the booking logic the handlers drive.
// *service.ReservationService implements it.
type ReservationService interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*model.Reservation, error)
	Availability(ctx context.Context, q service.AvailabilityQuery) ([]model.Table, error)
	Cancel(ctx context.Context, id uint64, actor service.Actor) (*model.Reservation, error)
	Confirm(ctx context.Context, id uint64, paymentRef string) (*model.Reservation, error)
	ExpirePending(ctx context.Context) (int64, error)
	Location() *time.Location
}

// ReservationReader serves read-only reservation queries.
// *repository.ReservationRepo implements it.
type ReservationReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListByDate(ctx context.Context, date, status string) ([]model.Reservation, error)
}

const dbTimeout = 5 * time.Second

// actorFrom builds the service actor from the JWT context values.
func actorFrom(c echo.Context) (service.Actor, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: id, Role: middleware.Role(c)}, true
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// errorStatus maps domain errors to an HTTP status and client message.
// Unknown errors are 500 with a generic message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, allocator.ErrInvalidSlot):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, allocator.ErrNoAvailability):
		return http.StatusConflict, "no table available for the requested slot"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrTooLate):
		return http.StatusConflict, "reservation already started"
	case errors.Is(err, service.ErrHoldExpired):
		return http.StatusGone, "reservation hold expired"
	case errors.Is(err, service.ErrNotPending):
		return http.StatusConflict, "reservation is not pending"
	case errors.Is(err, service.ErrConflictOnInsert), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflicting update, please retry"
	}
	return http.StatusInternalServerError, "internal error"
}

// respondError writes the mapped error.  Server errors are logged with
// the request id.
func respondError(c echo.Context, log *logrus.Logger, err error) error {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"path":       c.Path(),
		}).Error("handler failed")
	}
	return c.JSON(status, echo.Map{"error": msg})
}
