package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marvinagmata/tourism-room-booking/internal/booking"
	"github.com/marvinagmata/tourism-room-booking/internal/model"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
)

// BookingHandler exposes the booking lifecycle over HTTP.  All methods
// assume JWT authentication and role validation have already been
// performed by middleware; authorization against the specific booking
// (own booking for tourists, own rooms for businesses) happens here.
type BookingHandler struct {
	Ledger     *booking.Ledger
	Bookings   bookingStore
	Rooms      roomStore
	PendingTTL time.Duration // age after which unpaid PENDING bookings expire
}

// NewBookingHandler constructs a BookingHandler.  All dependencies
// must be non-nil.
func NewBookingHandler(ledger *booking.Ledger, bookings bookingStore, rooms roomStore, pendingTTL time.Duration) *BookingHandler {
	if ledger == nil || bookings == nil || rooms == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Ledger: ledger, Bookings: bookings, Rooms: rooms, PendingTTL: pendingTTL}
}

// createBookingRequest is the body of POST /v1/bookings.  Walk-in
// fields (guest_name, guest_contact) are only honored for business
// users; tourist bookings are always attributed to the token subject.
type createBookingRequest struct {
	RoomID       uint64  `json:"room_id" validate:"required"`
	CheckIn      string  `json:"check_in" validate:"required"`
	CheckOut     string  `json:"check_out" validate:"required"`
	Adults       uint32  `json:"adults" validate:"required,min=1"`
	Children     uint32  `json:"children"`
	Infants      uint32  `json:"infants"`
	Nationality  string  `json:"nationality"`
	TripPurpose  string  `json:"trip_purpose"`
	StayType     string  `json:"stay_type" validate:"omitempty,oneof=OVERNIGHT SHORT_STAY"`
	GuestName    *string `json:"guest_name"`
	GuestContact *string `json:"guest_contact"`
}

// Create handles POST /v1/bookings.  The created booking starts
// PENDING and already occupies the room for its dates; the client has
// the configured TTL to complete payment before the expiry sweep
// releases it.  A 409 means the room was taken or blocked for the
// requested dates.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	checkIn, err := time.Parse(dateLayout, body.CheckIn)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be a YYYY-MM-DD date"})
	}
	checkOut, err := time.Parse(dateLayout, body.CheckOut)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be a YYYY-MM-DD date"})
	}

	in := booking.CreateBookingInput{
		RoomID:      body.RoomID,
		Adults:      body.Adults,
		Children:    body.Children,
		Infants:     body.Infants,
		Nationality: body.Nationality,
		TripPurpose: body.TripPurpose,
		StayType:    body.StayType,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
	}
	if getRole(c) == model.PayerBusiness && body.GuestName != nil && *body.GuestName != "" {
		// walk-in recorded at the front desk; no tourist account involved
		in.Channel = model.ChannelWalkIn
		in.GuestName = body.GuestName
		in.GuestContact = body.GuestContact
	} else {
		in.Channel = model.ChannelOnline
		in.GuestID = &userID
	}

	b, err := h.Ledger.CreateBooking(c.Request().Context(), in)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := authorizeBooking(c, h.Bookings, h.Rooms)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListMine handles GET /v1/my-bookings.  Tourists see their own
// bookings; business users see every booking across their rooms.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var items []repository.BookingDetail
	if getRole(c) == model.PayerBusiness {
		items, err = h.Bookings.ListByBusiness(c.Request().Context(), userID)
	} else {
		items, err = h.Bookings.ListByGuest(c.Request().Context(), userID)
	}
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

// UpdateStatus handles PATCH /v1/bookings/:id/status.  Only the owning
// business may drive check-in and check-out.  Illegal transitions are
// rejected with 422; repeating the current status is a no-op 200.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	b, err := authorizeBooking(c, h.Bookings, h.Rooms)
	if err != nil {
		return domainError(c, err)
	}
	if getRole(c) != model.PayerBusiness {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	var body struct {
		Status string  `json:"status" validate:"required,oneof=RESERVED CHECKED_IN CHECKED_OUT CANCELED"`
		Reason *string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	updated, err := h.Ledger.UpdateStatus(c.Request().Context(), b.ID, body.Status, body.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Cancel handles POST /v1/bookings/:id/cancel.  Canceling releases the
// room immediately and fails any pending payment attempts; money
// already captured stays on record for an out-of-band refund.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := authorizeBooking(c, h.Bookings, h.Rooms)
	if err != nil {
		return domainError(c, err)
	}
	var body struct {
		Reason *string `json:"reason"`
	}
	_ = c.Bind(&body) // body is optional
	updated, err := h.Ledger.Cancel(c.Request().Context(), b.ID, body.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// ExpirePending handles POST /v1/internal/bookings/expire-pending.
// It cancels unpaid PENDING bookings older than the configured TTL and
// reports how many were released.  The same sweep also runs on a timer
// in the background; the endpoint exists for operators and schedulers.
func (h *BookingHandler) ExpirePending(c echo.Context) error {
	n, err := h.Ledger.ExpirePending(c.Request().Context(), time.Now().UTC().Add(-h.PendingTTL))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

// authorizeBooking fetches the booking from the :id path parameter and
// enforces ownership: tourists must be the booking's guest, business
// users must own the room.  Shared with the payment handlers, which
// operate on the same path hierarchy.
func authorizeBooking(c echo.Context, bookings bookingStore, rooms roomStore) (*model.Booking, error) {
	userID, err := getUserID(c)
	if err != nil {
		return nil, repository.ErrForbidden
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil, booking.ErrValidation
	}
	ctx := c.Request().Context()
	b, err := bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if getRole(c) == model.PayerBusiness {
		room, err := rooms.GetByID(ctx, b.RoomID)
		if err != nil {
			return nil, err
		}
		if room.BusinessID != userID {
			return nil, repository.ErrForbidden
		}
		return b, nil
	}
	if b.GuestID == nil || *b.GuestID != userID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}
