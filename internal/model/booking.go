package model

import "time"

// Booking status enumeration.  A booking starts in PENDING and moves
// forward via payment reconciliation (PENDING -> RESERVED) or
// front-desk operations (RESERVED -> CHECKED_IN -> CHECKED_OUT).
// CANCELED and CHECKED_OUT are terminal.  A PENDING booking still
// occupies the room for overlap purposes; the expiry sweep releases
// PENDING bookings that never reach RESERVED within the grace period.
const (
	BookingPending    = "PENDING"
	BookingReserved   = "RESERVED"
	BookingCheckedIn  = "CHECKED_IN"
	BookingCheckedOut = "CHECKED_OUT"
	BookingCanceled   = "CANCELED"
)

// Booking channels.
const (
	ChannelOnline = "ONLINE"
	ChannelWalkIn = "WALK_IN"
)

// Stay types.
const (
	StayOvernight = "OVERNIGHT"
	StayShortStay = "SHORT_STAY"
)

// Booking records a guest's stay in a room.  The guest is either a
// registered tourist (GuestID set) or a walk-in identified by name and
// contact.  Date intervals are half-open: [CheckInDate, CheckOutDate),
// so a checkout date equal to another booking's check-in date is not a
// conflict.  Bookings are never physically deleted while payments
// reference them.
type Booking struct {
	ID              uint64     `json:"id"`                       // bookings.id
	ReferenceCode   string     `json:"reference_code"`           // bookings.reference_code (opaque, returned to clients)
	RoomID          uint64     `json:"room_id"`                  // bookings.room_id
	GuestID         *uint64    `json:"guest_id,omitempty"`       // bookings.guest_id (nullable for walk-ins)
	GuestName       *string    `json:"guest_name,omitempty"`     // bookings.guest_name (walk-ins)
	GuestContact    *string    `json:"guest_contact,omitempty"`  // bookings.guest_contact (walk-ins)
	Adults          uint32     `json:"adults"`                   // bookings.adults
	Children        uint32     `json:"children"`                 // bookings.children
	Infants         uint32     `json:"infants"`                  // bookings.infants
	Nationality     string     `json:"nationality,omitempty"`    // bookings.nationality
	TripPurpose     string     `json:"trip_purpose,omitempty"`   // bookings.trip_purpose
	StayType        string     `json:"stay_type"`                // bookings.stay_type (OVERNIGHT, SHORT_STAY)
	Channel         string     `json:"channel"`                  // bookings.channel (ONLINE, WALK_IN)
	CheckInDate     time.Time  `json:"check_in"`                 // bookings.check_in_date
	CheckOutDate    time.Time  `json:"check_out"`                // bookings.check_out_date (exclusive)
	TotalPriceCents int64      `json:"total_price_cents"`        // bookings.total_price_cents
	BalanceCents    int64      `json:"balance_cents"`            // bookings.balance_cents (total minus paid payments)
	Status          string     `json:"status"`                   // bookings.status
	StatusReason    *string    `json:"status_reason,omitempty"`  // bookings.status_reason (nullable)
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty"`  // bookings.checked_in_at
	CheckedOutAt    *time.Time `json:"checked_out_at,omitempty"` // bookings.checked_out_at
	CreatedAt       time.Time  `json:"created_at"`               // bookings.created_at
	UpdatedAt       time.Time  `json:"-"`                        // bookings.updated_at
}
