// Package router wires handlers and middleware into an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/handler"
	"github.com/iliyamo/cinema-seat-checkout/internal/middleware"
)

// Deps is everything New needs.  Redis may be nil, in which case rate
// limiting and response caching are disabled.
type Deps struct {
	DB         handler.Pinger
	Redis      redis.UniversalClient
	Checkout   *handler.CheckoutHandler
	Membership *handler.MembershipHandler
	JWTSecret  string
	RateLimit  config.RateLimitConfig
	Cache      config.CacheConfig
	Log        *zap.Logger
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))

	RegisterRoutes(e, d.DB)
	RegisterPublic(e, d.Checkout, d.Membership, middleware.NewRedisCache(d.Cache, d.Redis))
	RegisterCustomer(e, d.Checkout, d.Membership, d.JWTSecret,
		middleware.NewTokenBucket(d.RateLimit.Checkout(), d.Redis, d.Log))
	return e
}

// RegisterRoutes registers routes that need neither authentication nor
// any domain handler.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers the guest-facing read endpoints.  Occupied seats
// change with every booking, so only the plan listing is cached.
func RegisterPublic(e *echo.Echo, co *handler.CheckoutHandler, m *handler.MembershipHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/shows/:id/occupied-seats", co.OccupiedSeats)
	e.POST("/v1/shows/:id/availability", co.Availability)
	e.GET("/v1/membership/plans", m.Plans, cache)
}

// RegisterCustomer registers the endpoints that act on behalf of a signed
// in customer.  Starting and verifying a checkout get their own, tighter
// rate limit on top of the global one.
func RegisterCustomer(e *echo.Echo, co *handler.CheckoutHandler, m *handler.MembershipHandler, jwtSecret string, checkoutLimit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CUSTOMER"))

	g.POST("/checkout/orders", co.StartOrder, checkoutLimit)
	g.POST("/checkout/verify", co.Verify, checkoutLimit)
	g.DELETE("/shows/:id/hold", co.ReleaseHold)

	g.GET("/bookings", co.ListBookings)
	g.GET("/bookings/:id", co.GetBooking)

	g.GET("/membership/status", m.Status)
}
