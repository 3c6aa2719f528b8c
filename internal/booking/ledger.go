// Package booking owns the booking record lifecycle: creation with an
// in-transaction availability recheck, the status state machine, and
// the pending-expiry sweep.  All writes to a room's booking timeline go
// through the Ledger; no other component writes booking rows directly.
package booking

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
	"github.com/marvinagmata/tourism-room-booking/internal/txn"
)

type roomStore interface {
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error)
}

type bookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time, excludeID uint64) (int, error)
	CountIntervalViolationsTx(ctx context.Context, tx *sql.Tx, roomID uint64) (int, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, reason *string) error
	ExpirePendingTx(ctx context.Context, tx *sql.Tx, olderThan time.Time) (int64, error)
}

type blockedStore interface {
	CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time) (int, error)
}

type paymentStore interface {
	FailPendingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error)
}

// Ledger mediates every booking mutation.
type Ledger struct {
	runner   txn.Runner
	rooms    roomStore
	bookings bookingStore
	blocked  blockedStore
	payments paymentStore
}

// NewLedger constructs a Ledger.  All dependencies must be non-nil.
func NewLedger(runner txn.Runner, rooms roomStore, bookings bookingStore, blocked blockedStore, payments paymentStore) *Ledger {
	if runner == nil || rooms == nil || bookings == nil || blocked == nil || payments == nil {
		panic("nil dependency passed to NewLedger")
	}
	return &Ledger{runner: runner, rooms: rooms, bookings: bookings, blocked: blocked, payments: payments}
}

// CreateBookingInput carries everything needed to open a booking.
// Either GuestID (registered tourist) or GuestName must be set.
type CreateBookingInput struct {
	RoomID       uint64
	GuestID      *uint64
	GuestName    *string
	GuestContact *string
	Adults       uint32
	Children     uint32
	Infants      uint32
	Nationality  string
	TripPurpose  string
	StayType     string
	Channel      string
	CheckIn      time.Time
	CheckOut     time.Time
}

func (in *CreateBookingInput) validate() error {
	if in.RoomID == 0 {
		return ErrValidation
	}
	if !in.CheckIn.Before(in.CheckOut) {
		return ErrValidation
	}
	if in.Adults == 0 {
		return ErrValidation
	}
	if in.GuestID == nil && (in.GuestName == nil || *in.GuestName == "") {
		return ErrValidation
	}
	if in.StayType == "" {
		in.StayType = model.StayOvernight
	}
	if in.StayType != model.StayOvernight && in.StayType != model.StayShortStay {
		return ErrValidation
	}
	if in.Channel == "" {
		in.Channel = model.ChannelOnline
	}
	if in.Channel != model.ChannelOnline && in.Channel != model.ChannelWalkIn {
		return ErrValidation
	}
	return nil
}

// CreateBooking re-validates availability inside the same transaction
// as the insert.  The room row lock serializes concurrent requests for
// the same room, so after the overlap counts pass, no other transaction
// can commit a conflicting stay before this one commits.  The booking
// starts PENDING with its balance equal to the full price; a PENDING
// booking already occupies the room, which closes the race between the
// availability check and payment completion at the cost of the expiry
// sweep for abandoned checkouts.
func (l *Ledger) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	nights := int64(in.CheckOut.Sub(in.CheckIn).Hours() / 24)
	if nights < 1 {
		nights = 1
	}
	var created *model.Booking
	err := l.runner.WithTx(ctx, func(tx *sql.Tx) error {
		room, err := l.rooms.LockTx(ctx, tx, in.RoomID)
		if err != nil {
			return err
		}
		if !room.Active {
			return ErrConflict
		}
		if n, err := l.bookings.CountIntervalViolationsTx(ctx, tx, room.ID); err != nil {
			return err
		} else if n > 0 {
			log.Printf("booking: integrity violation on room %d: %d overlapping pairs", room.ID, n)
			return ErrIntegrity
		}
		if n, err := l.bookings.CountOverlappingTx(ctx, tx, room.ID, in.CheckIn, in.CheckOut, 0); err != nil {
			return err
		} else if n > 0 {
			return ErrConflict
		}
		if n, err := l.blocked.CountOverlappingTx(ctx, tx, room.ID, in.CheckIn, in.CheckOut); err != nil {
			return err
		} else if n > 0 {
			return ErrConflict
		}
		total := nights * room.NightlyRateCents
		b := &model.Booking{
			ReferenceCode:   uuid.NewString(),
			RoomID:          room.ID,
			GuestID:         in.GuestID,
			GuestName:       in.GuestName,
			GuestContact:    in.GuestContact,
			Adults:          in.Adults,
			Children:        in.Children,
			Infants:         in.Infants,
			Nationality:     in.Nationality,
			TripPurpose:     in.TripPurpose,
			StayType:        in.StayType,
			Channel:         in.Channel,
			CheckInDate:     in.CheckIn,
			CheckOutDate:    in.CheckOut,
			TotalPriceCents: total,
			BalanceCents:    total,
			Status:          model.BookingPending,
		}
		if err := l.bookings.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateStatus enforces the transition table.  Requesting the status
// the booking already has is an idempotent no-op.  Transitions out of
// terminal states return ErrInvalidTransition.
func (l *Ledger) UpdateStatus(ctx context.Context, bookingID uint64, newStatus string, reason *string) (*model.Booking, error) {
	if !ValidStatus(newStatus) {
		return nil, ErrValidation
	}
	var out *model.Booking
	err := l.runner.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := l.bookings.LockTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == newStatus {
			out = b
			return nil
		}
		if !CanTransition(b.Status, newStatus) {
			return ErrInvalidTransition
		}
		if err := l.bookings.UpdateStatusTx(ctx, tx, b.ID, newStatus, reason); err != nil {
			return err
		}
		b.Status = newStatus
		b.StatusReason = reason
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel moves a booking to CANCELED.  Pending payments are failed
// first so that any gateway event later arriving for their intents is
// discarded as stale; paid payments are left untouched for the refund
// policy to handle out of band.  Canceling an already-canceled booking
// is a no-op.
func (l *Ledger) Cancel(ctx context.Context, bookingID uint64, reason *string) (*model.Booking, error) {
	var out *model.Booking
	err := l.runner.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := l.bookings.LockTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCanceled {
			out = b
			return nil
		}
		if !CanTransition(b.Status, model.BookingCanceled) {
			return ErrInvalidTransition
		}
		if n, err := l.payments.FailPendingTx(ctx, tx, b.ID); err != nil {
			return err
		} else if n > 0 {
			log.Printf("booking: canceled booking %d voided %d pending payment(s)", b.ID, n)
		}
		if err := l.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCanceled, reason); err != nil {
			return err
		}
		b.Status = model.BookingCanceled
		b.StatusReason = reason
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpirePending cancels PENDING bookings created at or before olderThan
// that have no paid payment, returning the number released.  The
// scheduling trigger lives outside this service; this is only the
// mechanism.
func (l *Ledger) ExpirePending(ctx context.Context, olderThan time.Time) (int64, error) {
	var count int64
	err := l.runner.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := l.bookings.ExpirePendingTx(ctx, tx, olderThan)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
