package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Health       echo.HandlerFunc
	Auth         *handler.AuthHandler
	Public       *handler.PublicHandler
	Reservations *handler.ReservationHandler
	Staff        *handler.StaffHandler
}

// Options carries the cross-cutting settings: the JWT secret, Redis (nil
// disables rate limiting and caching) and their configs.
type Options struct {
	JWTSecret    string
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	ReserveLimit config.RateLimitConfig
	Cache        config.CacheConfig
	Log          *logrus.Logger
}

// New builds the echo instance with the global middleware and every route.
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(opts.Log))
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(opts.RateLimit, opts.Redis, opts.Log))

	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, opts.JWTSecret)
	RegisterPublic(e, h.Public, middleware.NewRedisCache(opts.Cache, opts.Redis, opts.Log))
	RegisterCustomer(e, h.Reservations, opts.JWTSecret,
		middleware.NewTokenBucket(opts.ReserveLimit, opts.Redis, opts.Log))
	RegisterStaff(e, h.Staff, h.Reservations, opts.JWTSecret)
	return e
}

// RegisterRoutes registers the health check used by load balancers.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers the session endpoints.  Register, login and
// refresh need no token; /v1/me does.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleStaff))
}

// RegisterPublic registers unauthenticated browse endpoints.  Opening
// hours change rarely and go through the response cache; availability
// is always computed live.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/opening-hours", p.OpeningHours, cache)
	e.GET("/v1/availability", p.Availability)
}

// RegisterCustomer registers the booking endpoints.  Any signed-in user
// may book; reserve carries its own stricter rate limit.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, reserveLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleStaff),
	)
	g.POST("/reservations", h.Create, reserveLimit)
	g.GET("/my-reservations", h.ListMine)
	g.GET("/reservations/:id", h.Get)
	g.GET("/reservations/:id/confirmation.pdf", h.ConfirmationPDF)
	g.DELETE("/reservations/:id", h.Cancel)
}

// RegisterStaff registers the management endpoints under /v1/staff.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, r *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff),
	)
	g.GET("/tables", s.ListTables)
	g.POST("/tables", s.CreateTable)
	g.PUT("/tables/:id", s.UpdateTable)
	g.DELETE("/tables/:id", s.DeleteTable)

	g.PUT("/opening-hours/:weekday", s.PutOpeningHours)
	g.DELETE("/opening-hours/:weekday", s.DeleteOpeningHours)
	g.PUT("/holidays/:date", s.PutHoliday)
	g.DELETE("/holidays/:date", s.DeleteHoliday)

	g.GET("/reservations", s.ListReservations)
	// registered before :id so the static segment wins
	g.POST("/reservations/expire-holds", s.ExpireHolds)
	g.POST("/reservations/:id/confirm", s.ConfirmReservation)
	g.GET("/reservations/:id", r.Get)
	g.DELETE("/reservations/:id", r.Cancel)
}
