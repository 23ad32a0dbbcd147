package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// IdempotencyKeyHeader optionally makes POST /v1/checkout/orders safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutService is implemented by *checkout.Service.
type CheckoutService interface {
	Start(ctx context.Context, req checkout.StartRequest) (checkout.Checkout, error)
	Finalize(ctx context.Context, req checkout.FinalizeRequest) (model.Booking, error)
}

// SeatService is implemented by *reservation.Service.
type SeatService interface {
	OccupiedSeats(ctx context.Context, showID uint64) ([]string, error)
	CheckAvailability(ctx context.Context, showID uint64, seats []string) ([]string, error)
	Release(ctx context.Context, showID uint64, holder string) (int, error)
}

// ShowReader is implemented by *repository.ShowRepo.
type ShowReader interface {
	GetByID(ctx context.Context, id uint64) (model.Show, error)
}

// BookingReader is implemented by *repository.BookingRepo.
type BookingReader interface {
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	TicketForUser(ctx context.Context, bookingID, userID uint64) (model.Ticket, error)
}

// CheckoutHandler serves seat availability, checkout and booking routes.
type CheckoutHandler struct {
	Seats    SeatService
	Checkout CheckoutService
	Bookings BookingReader
	Shows    ShowReader
	Log      *zap.Logger
}

// NewCheckoutHandler panics if a dependency is nil.
func NewCheckoutHandler(seats SeatService, co CheckoutService, bookings BookingReader, shows ShowReader, log *zap.Logger) *CheckoutHandler {
	if seats == nil || co == nil || bookings == nil || shows == nil {
		panic("nil dependency passed to NewCheckoutHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{Seats: seats, Checkout: co, Bookings: bookings, Shows: shows, Log: log}
}

// showID reads the :id parameter and checks the show exists, so the seat
// map is never provisioned for an unknown show.
func (h *CheckoutHandler) showID(c echo.Context) (uint64, error) {
	id, ok := parseID(c, "id")
	if !ok {
		return 0, errInvalidShowID
	}
	if _, err := h.Shows.GetByID(c.Request().Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}

// OccupiedSeats handles GET /v1/shows/:id/occupied-seats.  Only committed
// seats are listed.
func (h *CheckoutHandler) OccupiedSeats(c echo.Context) error {
	showID, err := h.showID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	seats, err := h.Seats.OccupiedSeats(c.Request().Context(), showID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "occupied_seats": seats})
}

type seatsRequest struct {
	Seats []string `json:"seats"`
}

// Availability handles POST /v1/shows/:id/availability.  It is a preview:
// nothing is held.
func (h *CheckoutHandler) Availability(c echo.Context) error {
	showID, err := h.showID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var body seatsRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	taken, err := h.Seats.CheckAvailability(c.Request().Context(), showID, body.Seats)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "available": len(taken) == 0, "unavailable": taken})
}

type startRequest struct {
	ShowID uint64   `json:"show_id"`
	Seats  []string `json:"seats"`
	Amount int64    `json:"amount"` // advisory only
}

// StartOrder handles POST /v1/checkout/orders.  It holds the seats and
// opens a gateway order for the server-computed total.
func (h *CheckoutHandler) StartOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body startRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ShowID == 0 {
		return badRequest(c, "show_id is required")
	}
	co, err := h.Checkout.Start(c.Request().Context(), checkout.StartRequest{
		UserID:         userID,
		ShowID:         body.ShowID,
		Seats:          body.Seats,
		ClientAmount:   body.Amount,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, co)
}

// ReleaseHold handles DELETE /v1/shows/:id/hold.
func (h *CheckoutHandler) ReleaseHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, err := h.showID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	n, err := h.Seats.Release(c.Request().Context(), showID, checkout.HolderFor(userID))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

type verifyRequest struct {
	ShowID    uint64   `json:"show_id"`
	Seats     []string `json:"seats"`
	OrderID   string   `json:"order_id"`
	PaymentID string   `json:"payment_id"`
	Signature string   `json:"signature"`
	Amount    int64    `json:"amount"` // advisory only
}

// Verify handles POST /v1/checkout/verify, the relayed gateway callback.
func (h *CheckoutHandler) Verify(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body verifyRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ShowID == 0 || body.OrderID == "" || body.PaymentID == "" || body.Signature == "" {
		return badRequest(c, "show_id, order_id, payment_id and signature are required")
	}
	b, err := h.Checkout.Finalize(c.Request().Context(), checkout.FinalizeRequest{
		UserID:       userID,
		ShowID:       body.ShowID,
		Seats:        body.Seats,
		OrderID:      body.OrderID,
		PaymentID:    body.PaymentID,
		Signature:    body.Signature,
		ClientAmount: body.Amount,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// ListBookings handles GET /v1/bookings.
func (h *CheckoutHandler) ListBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetBooking handles GET /v1/bookings/:id and returns the ticket view.
func (h *CheckoutHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	t, err := h.Bookings.TicketForUser(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
