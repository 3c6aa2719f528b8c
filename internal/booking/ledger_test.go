package booking

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
)

// fakeRunner executes the transaction body with a nil tx; the fake
// stores below ignore their tx argument.
type fakeRunner struct{}

func (fakeRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type fakeRoomStore struct {
	room *model.Room
	err  error
}

func (f *fakeRoomStore) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	return f.room, f.err
}

type fakeBookingStore struct {
	booking       *model.Booking
	overlaps      int
	violations    int
	expired       int64
	created       *model.Booking
	updatedStatus string
	updatedReason *string
	expireArg     time.Time
}

func (f *fakeBookingStore) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	b.ID = 42
	f.created = b
	return nil
}

func (f *fakeBookingStore) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return f.booking, nil
}

func (f *fakeBookingStore) CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time, excludeID uint64) (int, error) {
	return f.overlaps, nil
}

func (f *fakeBookingStore) CountIntervalViolationsTx(ctx context.Context, tx *sql.Tx, roomID uint64) (int, error) {
	return f.violations, nil
}

func (f *fakeBookingStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, reason *string) error {
	f.updatedStatus = status
	f.updatedReason = reason
	return nil
}

func (f *fakeBookingStore) ExpirePendingTx(ctx context.Context, tx *sql.Tx, olderThan time.Time) (int64, error) {
	f.expireArg = olderThan
	return f.expired, nil
}

type fakeBlockedStore struct {
	overlaps int
}

func (f *fakeBlockedStore) CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time) (int, error) {
	return f.overlaps, nil
}

type fakePaymentStore struct {
	failed int64
}

func (f *fakePaymentStore) FailPendingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	return f.failed, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func guest(id uint64) *uint64 { return &id }

func newTestLedger(rooms *fakeRoomStore, bookings *fakeBookingStore, blocked *fakeBlockedStore, payments *fakePaymentStore) *Ledger {
	return NewLedger(fakeRunner{}, rooms, bookings, blocked, payments)
}

func validInput() CreateBookingInput {
	return CreateBookingInput{
		RoomID:   5,
		GuestID:  guest(9),
		Adults:   2,
		Children: 1,
		CheckIn:  day("2026-03-10"),
		CheckOut: day("2026-03-13"),
	}
}

func TestCreateBooking(t *testing.T) {
	rooms := &fakeRoomStore{room: &model.Room{ID: 5, Active: true, NightlyRateCents: 250000}}
	bookings := &fakeBookingStore{}
	ledger := newTestLedger(rooms, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

	b, err := ledger.CreateBooking(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, uint64(42), b.ID)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.NotEmpty(t, b.ReferenceCode)
	// three nights at 2500.00
	assert.Equal(t, int64(750000), b.TotalPriceCents)
	assert.Equal(t, b.TotalPriceCents, b.BalanceCents)
	assert.Equal(t, model.StayOvernight, b.StayType)
	assert.Equal(t, model.ChannelOnline, b.Channel)
}

func TestCreateBookingConflicts(t *testing.T) {
	t.Run("room already booked", func(t *testing.T) {
		rooms := &fakeRoomStore{room: &model.Room{ID: 5, Active: true, NightlyRateCents: 100000}}
		ledger := newTestLedger(rooms, &fakeBookingStore{overlaps: 1}, &fakeBlockedStore{}, &fakePaymentStore{})

		_, err := ledger.CreateBooking(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("dates blocked by business", func(t *testing.T) {
		rooms := &fakeRoomStore{room: &model.Room{ID: 5, Active: true, NightlyRateCents: 100000}}
		ledger := newTestLedger(rooms, &fakeBookingStore{}, &fakeBlockedStore{overlaps: 1}, &fakePaymentStore{})

		_, err := ledger.CreateBooking(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("room deactivated", func(t *testing.T) {
		rooms := &fakeRoomStore{room: &model.Room{ID: 5, Active: false}}
		ledger := newTestLedger(rooms, &fakeBookingStore{}, &fakeBlockedStore{}, &fakePaymentStore{})

		_, err := ledger.CreateBooking(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("existing overlap in storage aborts", func(t *testing.T) {
		rooms := &fakeRoomStore{room: &model.Room{ID: 5, Active: true, NightlyRateCents: 100000}}
		ledger := newTestLedger(rooms, &fakeBookingStore{violations: 1}, &fakeBlockedStore{}, &fakePaymentStore{})

		_, err := ledger.CreateBooking(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrIntegrity)
	})
}

func TestCreateBookingValidation(t *testing.T) {
	ledger := newTestLedger(&fakeRoomStore{}, &fakeBookingStore{}, &fakeBlockedStore{}, &fakePaymentStore{})

	cases := []struct {
		name   string
		mutate func(*CreateBookingInput)
	}{
		{"missing room", func(in *CreateBookingInput) { in.RoomID = 0 }},
		{"check-out not after check-in", func(in *CreateBookingInput) { in.CheckOut = in.CheckIn }},
		{"reversed dates", func(in *CreateBookingInput) { in.CheckIn, in.CheckOut = in.CheckOut, in.CheckIn }},
		{"no adults", func(in *CreateBookingInput) { in.Adults = 0 }},
		{"no guest at all", func(in *CreateBookingInput) { in.GuestID = nil }},
		{"unknown stay type", func(in *CreateBookingInput) { in.StayType = "WEEKEND" }},
		{"unknown channel", func(in *CreateBookingInput) { in.Channel = "PHONE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := ledger.CreateBooking(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateBookingWalkIn(t *testing.T) {
	rooms := &fakeRoomStore{room: &model.Room{ID: 5, Active: true, NightlyRateCents: 100000}}
	bookings := &fakeBookingStore{}
	ledger := newTestLedger(rooms, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

	name := "Juan dela Cruz"
	in := validInput()
	in.GuestID = nil
	in.GuestName = &name
	in.Channel = model.ChannelWalkIn

	b, err := ledger.CreateBooking(context.Background(), in)

	require.NoError(t, err)
	assert.Nil(t, b.GuestID)
	require.NotNil(t, b.GuestName)
	assert.Equal(t, name, *b.GuestName)
	assert.Equal(t, model.ChannelWalkIn, b.Channel)
}

func TestUpdateStatus(t *testing.T) {
	t.Run("allowed transition", func(t *testing.T) {
		bookings := &fakeBookingStore{booking: &model.Booking{ID: 1, Status: model.BookingReserved}}
		ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

		b, err := ledger.UpdateStatus(context.Background(), 1, model.BookingCheckedIn, nil)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCheckedIn, b.Status)
		assert.Equal(t, model.BookingCheckedIn, bookings.updatedStatus)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		bookings := &fakeBookingStore{booking: &model.Booking{ID: 1, Status: model.BookingReserved}}
		ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

		b, err := ledger.UpdateStatus(context.Background(), 1, model.BookingReserved, nil)
		require.NoError(t, err)
		assert.Equal(t, model.BookingReserved, b.Status)
		assert.Empty(t, bookings.updatedStatus)
	})

	t.Run("illegal transition rejected", func(t *testing.T) {
		bookings := &fakeBookingStore{booking: &model.Booking{ID: 1, Status: model.BookingPending}}
		ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

		_, err := ledger.UpdateStatus(context.Background(), 1, model.BookingCheckedIn, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		ledger := newTestLedger(&fakeRoomStore{}, &fakeBookingStore{}, &fakeBlockedStore{}, &fakePaymentStore{})

		_, err := ledger.UpdateStatus(context.Background(), 1, "DONE", nil)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestCancel(t *testing.T) {
	t.Run("cancel fails pending payments", func(t *testing.T) {
		bookings := &fakeBookingStore{booking: &model.Booking{ID: 1, Status: model.BookingPending}}
		payments := &fakePaymentStore{failed: 1}
		ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, payments)

		reason := "guest request"
		b, err := ledger.Cancel(context.Background(), 1, &reason)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCanceled, b.Status)
		assert.Equal(t, model.BookingCanceled, bookings.updatedStatus)
		require.NotNil(t, bookings.updatedReason)
		assert.Equal(t, reason, *bookings.updatedReason)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		bookings := &fakeBookingStore{booking: &model.Booking{ID: 1, Status: model.BookingCanceled}}
		ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

		b, err := ledger.Cancel(context.Background(), 1, nil)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCanceled, b.Status)
		assert.Empty(t, bookings.updatedStatus)
	})

	t.Run("cannot cancel after check-in", func(t *testing.T) {
		bookings := &fakeBookingStore{booking: &model.Booking{ID: 1, Status: model.BookingCheckedIn}}
		ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

		_, err := ledger.Cancel(context.Background(), 1, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestExpirePending(t *testing.T) {
	bookings := &fakeBookingStore{expired: 3}
	ledger := newTestLedger(&fakeRoomStore{}, bookings, &fakeBlockedStore{}, &fakePaymentStore{})

	cutoff := day("2026-03-10")
	n, err := ledger.ExpirePending(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, bookings.expireArg.Equal(cutoff))
}
