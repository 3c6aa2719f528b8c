package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marvinagmata/tourism-room-booking/internal/availability"
)

// dateLayout is the wire format for all stay dates.  Dates are
// calendar days, never instants; ranges are half-open with the
// check-out day excluded.
const dateLayout = "2006-01-02"

// AvailabilityHandler serves room availability queries for a business.
type AvailabilityHandler struct {
	Calc *availability.Calculator
}

// NewAvailabilityHandler constructs an AvailabilityHandler and panics
// if the calculator is nil.
func NewAvailabilityHandler(calc *availability.Calculator) *AvailabilityHandler {
	if calc == nil {
		panic("nil calculator passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Calc: calc}
}

// ListAvailable handles GET /v1/businesses/:id/rooms/availability.
// Query parameters check_in and check_out are required YYYY-MM-DD
// dates; check_out is exclusive, so a one night stay is e.g.
// check_in=2026-03-10&check_out=2026-03-11.  The response lists every
// active room of the business with no overlapping booking and no
// overlapping blocked range, in stable id order.
func (h *AvailabilityHandler) ListAvailable(c echo.Context) error {
	businessID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	checkIn, err := time.Parse(dateLayout, c.QueryParam("check_in"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be a YYYY-MM-DD date"})
	}
	checkOut, err := time.Parse(dateLayout, c.QueryParam("check_out"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be a YYYY-MM-DD date"})
	}

	rooms, err := h.Calc.FindAvailableRooms(c.Request().Context(), businessID, checkIn, checkOut)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"business_id": businessID,
		"check_in":    checkIn.Format(dateLayout),
		"check_out":   checkOut.Format(dateLayout),
		"rooms":       rooms,
	})
}
