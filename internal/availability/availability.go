// Package availability answers the question "which of this business's
// rooms are free for [checkIn, checkOut)".  The computation itself is
// pure; the Calculator feeds it from the room, booking and blocked-date
// repositories.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
)

// ErrInvalidRange is returned for zero-length or inverted date ranges.
// The check-in date must be strictly before the check-out date.
var ErrInvalidRange = errors.New("check-in date must be before check-out date")

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.  Because the end is exclusive, a checkout
// date equal to another booking's check-in date is not a conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FilterAvailable returns the rooms not present in either conflict set,
// preserving input order.  It is the pure core of the calculator.
func FilterAvailable(rooms []model.Room, booked, blocked map[uint64]struct{}) []model.Room {
	out := make([]model.Room, 0, len(rooms))
	for _, r := range rooms {
		if _, ok := booked[r.ID]; ok {
			continue
		}
		if _, ok := blocked[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

type roomLister interface {
	ListActiveByBusiness(ctx context.Context, businessID uint64) ([]model.Room, error)
}

type bookingConflicts interface {
	BookedRoomIDs(ctx context.Context, roomIDs []uint64, start, end time.Time) (map[uint64]struct{}, error)
}

type blockedConflicts interface {
	BlockedRoomIDs(ctx context.Context, roomIDs []uint64, start, end time.Time) (map[uint64]struct{}, error)
}

// Calculator computes room availability for a business and date range.
type Calculator struct {
	rooms    roomLister
	bookings bookingConflicts
	blocked  blockedConflicts
}

// NewCalculator constructs a Calculator from the three read sides.
func NewCalculator(rooms roomLister, bookings bookingConflicts, blocked blockedConflicts) *Calculator {
	return &Calculator{rooms: rooms, bookings: bookings, blocked: blocked}
}

// FindAvailableRooms returns the rooms of businessID free for the
// half-open range [checkIn, checkOut).  A room qualifies when it is
// active, has no room-occupying booking intersecting the range and no
// blocked date range intersecting it.  Results keep the repository's
// stable room ordering.  A business with no rooms yields an empty
// slice, not an error.
func (c *Calculator) FindAvailableRooms(ctx context.Context, businessID uint64, checkIn, checkOut time.Time) ([]model.Room, error) {
	if !checkIn.Before(checkOut) {
		return nil, ErrInvalidRange
	}
	rooms, err := c.rooms.ListActiveByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []model.Room{}, nil
	}
	ids := make([]uint64, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	booked, err := c.bookings.BookedRoomIDs(ctx, ids, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	blocked, err := c.blocked.BlockedRoomIDs(ctx, ids, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	return FilterAvailable(rooms, booked, blocked), nil
}
