package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/handler"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/pricing"
	"github.com/iliyamo/cinema-seat-checkout/internal/reservation"
)

const secret = "router-test-secret"

type nopCheckout struct{}

func (nopCheckout) Start(context.Context, checkout.StartRequest) (checkout.Checkout, error) {
	return checkout.Checkout{}, nil
}

func (nopCheckout) Finalize(context.Context, checkout.FinalizeRequest) (model.Booking, error) {
	return model.Booking{}, nil
}

type noBookings struct{}

func (noBookings) ListByUser(context.Context, uint64) ([]model.Booking, error) { return nil, nil }

func (noBookings) TicketForUser(context.Context, uint64, uint64) (model.Ticket, error) {
	return model.Ticket{}, model.ErrBookingNotFound
}

type oneShow struct{}

func (oneShow) GetByID(_ context.Context, id uint64) (model.Show, error) {
	if id != 1 {
		return model.Show{}, model.ErrShowNotFound
	}
	return model.Show{ID: 1, MovieTitle: "Dune", Status: model.ShowScheduled}, nil
}

type noMembers struct{}

func (noMembers) Get(_ context.Context, id uint64) (model.Membership, error) {
	return model.Membership{UserID: id, Tier: model.TierNone}, nil
}

func newTestRouter(t *testing.T, rdb redis.UniversalClient, rl config.RateLimitConfig) *http.Server {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.TierTable{model.TierSilver: 10, model.TierGold: 15})
	require.NoError(t, err)
	seats := reservation.NewService(reservation.NewMemoryStore(), reservation.DefaultLayout)
	e := New(Deps{
		Redis:      rdb,
		Checkout:   handler.NewCheckoutHandler(seats, nopCheckout{}, noBookings{}, oneShow{}, nil),
		Membership: handler.NewMembershipHandler(engine, noMembers{}, nil),
		JWTSecret:  secret,
		RateLimit:  rl,
		Cache:      config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache"},
	})
	return &http.Server{Handler: e}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(srv *http.Server, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Access(t *testing.T) {
	srv := newTestRouter(t, nil, config.RateLimitConfig{})

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/v1/shows/1/occupied-seats", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/v1/shows/2/occupied-seats", "").Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/v1/membership/plans", "").Code)

	assert.Equal(t, http.StatusUnauthorized, serve(srv, http.MethodGet, "/v1/bookings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(srv, http.MethodGet, "/v1/bookings", "not-a-jwt").Code)
	assert.Equal(t, http.StatusForbidden, serve(srv, http.MethodGet, "/v1/bookings", token(t, "7", "owner")).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/v1/bookings", token(t, "7", "customer")).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/v1/membership/status", token(t, "7", "CUSTOMER")).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodDelete, "/v1/shows/1/hold", token(t, "7", "CUSTOMER")).Code)
}

func TestRoutes_ResponseHasRequestID(t *testing.T) {
	srv := newTestRouter(t, nil, config.RateLimitConfig{})
	rec := serve(srv, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRoutes_PlansAreCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	srv := newTestRouter(t, rdb, config.RateLimitConfig{})

	first := serve(srv, http.MethodGet, "/v1/membership/plans", "")
	second := serve(srv, http.MethodGet, "/v1/membership/plans", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// occupied seats are never cached
	assert.Empty(t, serve(srv, http.MethodGet, "/v1/shows/1/occupied-seats", "").Header().Get("X-Cache"))
}

func TestRoutes_CheckoutLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rl := config.RateLimitConfig{
		Enabled: true, Capacity: 100, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour,
		KeyStrategy: "ip", Prefix: "rl", CheckoutCapacity: 2, CheckoutRefillInterval: time.Hour,
	}
	srv := newTestRouter(t, rdb, rl)
	tok := token(t, "7", "CUSTOMER")

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(srv, http.MethodPost, "/v1/checkout/orders", tok).Code)
	}
	// the empty body fails binding checks, but only after the limiter ran
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	// other customer routes only see the global bucket
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/v1/bookings", tok).Code)
}
