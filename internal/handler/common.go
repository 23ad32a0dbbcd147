// Package handler holds the echo handlers of the checkout API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/middleware"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/pricing"
)

var (
	errUnauthenticated = errors.New("invalid user_id in context")
	errInvalidShowID   = errors.New("invalid show id")
)

// getUserID returns the authenticated user set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errUnauthenticated
	}
	return id, nil
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

// writeError maps domain errors to distinct status codes and error codes
// so the client can tell "pick different seats" from "payment failed".
// Order matters: wrapped errors can match more than one kind.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var conflict *model.SeatConflictError
	switch {
	case errors.Is(err, errInvalidShowID):
		return badRequest(c, err.Error())
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "seat_conflict",
			"message": "one or more seats are no longer available, pick different seats",
			"seats":   conflict.Seats,
		})
	case errors.Is(err, model.ErrSeatConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat_conflict", "message": err.Error()})
	case errors.Is(err, model.ErrAmountMismatch):
		log.Error("amount mismatch", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "amount_mismatch",
			"message": "the charged amount does not match the booking total; the payment has been flagged for reconciliation",
		})
	case errors.Is(err, model.ErrBookingUnfulfilled):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "booking_unfulfilled",
			"message": "payment received but the seats could not be booked; it has been flagged for refund",
		})
	case errors.Is(err, model.ErrTemporary):
		log.Warn("temporary failure", zap.String("path", c.Path()), zap.Error(err))
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "retry_later", "message": "temporary failure, retry the request"})
	case errors.Is(err, model.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_state", "message": "seat hold expired, restart checkout"})
	case errors.Is(err, model.ErrGatewayUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "gateway_unavailable", "message": "payment service unavailable, try again"})
	case errors.Is(err, model.ErrPaymentVerificationFailed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_verification_failed", "message": "payment could not be verified"})
	case errors.Is(err, model.ErrShowNotFound), errors.Is(err, model.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, model.ErrShowClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "show_closed", "message": err.Error()})
	case errors.Is(err, model.ErrNoSeats), errors.Is(err, model.ErrTooManySeats),
		errors.Is(err, model.ErrUnknownSeat), errors.Is(err, model.ErrDuplicateSeat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_seats", "message": err.Error()})
	case errors.Is(err, checkout.ErrRequestInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "request_in_progress", "message": err.Error()})
	case errors.Is(err, checkout.ErrIdempotencyKeyReused):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "idempotency_key_reused", "message": err.Error()})
	case errors.Is(err, pricing.ErrInvalidPrice), errors.Is(err, pricing.ErrUnknownTier):
		log.Error("pricing failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pricing_error", "message": "show cannot be priced"})
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal error"})
}
