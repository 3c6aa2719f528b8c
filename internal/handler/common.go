package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/marvinagmata/tourism-room-booking/internal/availability"
	"github.com/marvinagmata/tourism-room-booking/internal/booking"
	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/model"
	"github.com/marvinagmata/tourism-room-booking/internal/payment"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
)

// bookingStore is the slice of the booking repository the handlers
// read through.  Writes go through the ledger, never directly.
type bookingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	ListByGuest(ctx context.Context, guestID uint64) ([]repository.BookingDetail, error)
	ListByBusiness(ctx context.Context, businessID uint64) ([]repository.BookingDetail, error)
}

type roomStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Room, error)
}

type paymentStore interface {
	GetByPublicID(ctx context.Context, publicID string) (*model.Payment, error)
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole returns the role claim injected by the JWT middleware, or ""
// when the request is unauthenticated.
func getRole(c echo.Context) string {
	if r, ok := c.Get("role").(string); ok {
		return r
	}
	return ""
}

// domainError translates domain sentinel errors into HTTP responses.
// Anything unrecognized becomes a 500 with a generic message so
// internal details never leak to clients.
func domainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, payment.ErrValidation),
		errors.Is(err, availability.ErrInvalidRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, booking.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, payment.ErrBookingClosed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, gateway.ErrRejected):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// parseID parses a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
