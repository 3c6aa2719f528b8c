package model

import "time"

// Room is a bookable unit belonging to a business.  Rooms are created
// and edited by the business-management service; this service reads
// them when computing availability and pricing.  The Active flag is
// independent of bookings and is used for maintenance closures.
//
// Fields:
//  ID               – primary key identifier.
//  BusinessID       – business that owns the room.
//  Name             – display name of the room.
//  Capacity         – maximum number of guests.
//  NightlyRateCents – price per night in centavos.
//  Active           – whether the room is open for booking at all.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Room struct {
	ID               uint64    `json:"id"`                 // rooms.id
	BusinessID       uint64    `json:"business_id"`        // rooms.business_id
	Name             string    `json:"name"`               // rooms.name
	Capacity         uint32    `json:"capacity"`           // rooms.capacity
	NightlyRateCents int64     `json:"nightly_rate_cents"` // rooms.nightly_rate_cents
	Active           bool      `json:"active"`             // rooms.active
	CreatedAt        time.Time `json:"-"`                  // rooms.created_at
	UpdatedAt        time.Time `json:"-"`                  // rooms.updated_at
}

// BlockedDateRange is a business-declared interval during which a room
// is unavailable regardless of bookings (maintenance, private use).
// Ranges are half-open: EndDate is exclusive, so a block ending on a
// given date does not conflict with a stay starting that date.
type BlockedDateRange struct {
	ID        uint64    // blocked_date_ranges.id
	RoomID    uint64    // blocked_date_ranges.room_id
	StartDate time.Time // blocked_date_ranges.start_date
	EndDate   time.Time // blocked_date_ranges.end_date (exclusive)
	Reason    *string   // blocked_date_ranges.reason (nullable)
	CreatedAt time.Time // blocked_date_ranges.created_at
}
