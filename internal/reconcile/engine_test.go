package reconcile

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/model"
	q "github.com/marvinagmata/tourism-room-booking/internal/queue"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
)

type fakeRunner struct{}

func (fakeRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type fakePaymentStore struct {
	payment    *model.Payment
	sumPaid    int64
	live       int
	markedPaid bool
	markedFail bool
	markedRef  bool
	refundRef  string
	order      *[]string
}

func (f *fakePaymentStore) record(step string) {
	if f.order != nil {
		*f.order = append(*f.order, step)
	}
}

func (f *fakePaymentStore) FindByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error) {
	f.record("payment read")
	if f.payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	return f.payment, nil
}

func (f *fakePaymentStore) GetByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error) {
	f.record("payment lock")
	if f.payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	return f.payment, nil
}

func (f *fakePaymentStore) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, gatewayPaymentID string) error {
	f.markedPaid = true
	return nil
}

func (f *fakePaymentStore) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	f.markedFail = true
	return nil
}

func (f *fakePaymentStore) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id uint64, refundRef string) error {
	f.markedRef = true
	f.refundRef = refundRef
	return nil
}

func (f *fakePaymentStore) SumPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	return f.sumPaid, nil
}

func (f *fakePaymentStore) CountLiveTx(ctx context.Context, tx *sql.Tx, bookingID uint64, excludeID uint64) (int, error) {
	return f.live, nil
}

type fakeBookingStore struct {
	booking    *model.Booking
	newStatus  string
	newBalance *int64
	order      *[]string
}

func (f *fakeBookingStore) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	if f.order != nil {
		*f.order = append(*f.order, "booking lock")
	}
	if f.booking == nil {
		return nil, repository.ErrBookingNotFound
	}
	return f.booking, nil
}

func (f *fakeBookingStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, reason *string) error {
	f.newStatus = status
	return nil
}

func (f *fakeBookingStore) SetBalanceTx(ctx context.Context, tx *sql.Tx, id uint64, balanceCents int64) error {
	f.newBalance = &balanceCents
	return nil
}

type recordingPublisher struct {
	reserved []q.BookingReservedEvent
	settled  []q.PaymentSettledEvent
}

func (r *recordingPublisher) PublishBookingReserved(ctx context.Context, e q.BookingReservedEvent) error {
	r.reserved = append(r.reserved, e)
	return nil
}

func (r *recordingPublisher) PublishPaymentSettled(ctx context.Context, e q.PaymentSettledEvent) error {
	r.settled = append(r.settled, e)
	return nil
}

func strptr(s string) *string { return &s }

func pendingPayment() *model.Payment {
	return &model.Payment{
		ID:          7,
		PublicID:    "pay-7",
		BookingID:   3,
		Status:      model.PaymentPending,
		AmountCents: 500000,
		Currency:    "PHP",
		IntentID:    strptr("pi_123"),
	}
}

func pendingBooking() *model.Booking {
	return &model.Booking{
		ID:              3,
		ReferenceCode:   "ref-3",
		RoomID:          5,
		Status:          model.BookingPending,
		TotalPriceCents: 500000,
		BalanceCents:    500000,
	}
}

func TestReconcileSuccessReservesBooking(t *testing.T) {
	payments := &fakePaymentStore{payment: pendingPayment(), sumPaid: 500000}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	pub := &recordingPublisher{}
	e := NewEngine(fakeRunner{}, payments, bookings, pub, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.PaymentPaid, res.PaymentStatus)
	assert.Equal(t, model.BookingReserved, res.BookingStatus)
	assert.Zero(t, res.BalanceCents)

	assert.True(t, payments.markedPaid)
	assert.Equal(t, model.BookingReserved, bookings.newStatus)
	require.NotNil(t, bookings.newBalance)
	assert.Zero(t, *bookings.newBalance)

	require.Len(t, pub.reserved, 1)
	assert.Equal(t, "ref-3", pub.reserved[0].ReferenceCode)
	require.Len(t, pub.settled, 1)
	assert.Equal(t, model.PaymentPaid, pub.settled[0].Status)
	assert.Equal(t, "gwpay_1", pub.settled[0].GatewayPaymentID)
}

func TestReconcilePartialPaymentKeepsPending(t *testing.T) {
	p := pendingPayment()
	p.AmountCents = 200000
	payments := &fakePaymentStore{payment: p, sumPaid: 200000}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	pub := &recordingPublisher{}
	e := NewEngine(fakeRunner{}, payments, bookings, pub, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.BookingPending, res.BookingStatus)
	assert.Equal(t, int64(300000), res.BalanceCents)
	assert.Empty(t, bookings.newStatus)
	assert.Empty(t, pub.reserved)
	require.Len(t, pub.settled, 1)
}

func TestReconcilePartialMeetsConfiguredRatio(t *testing.T) {
	p := pendingPayment()
	p.AmountCents = 250000
	payments := &fakePaymentStore{payment: p, sumPaid: 250000}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 0.5)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")

	require.NoError(t, err)
	assert.Equal(t, model.BookingReserved, res.BookingStatus)
	assert.Equal(t, int64(250000), res.BalanceCents)
}

func TestReconcileDuplicateSuccess(t *testing.T) {
	p := pendingPayment()
	p.Status = model.PaymentPaid
	b := pendingBooking()
	b.Status = model.BookingReserved
	b.BalanceCents = 0
	payments := &fakePaymentStore{payment: p}
	bookings := &fakeBookingStore{booking: b}
	pub := &recordingPublisher{}
	e := NewEngine(fakeRunner{}, payments, bookings, pub, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.False(t, payments.markedPaid)
	assert.Empty(t, bookings.newStatus)
	assert.Empty(t, pub.settled)
	assert.Empty(t, pub.reserved)
}

func TestReconcileConvergesUnderRacingChannels(t *testing.T) {
	// verify and webhook deliver the same truth; whichever applies
	// second must see a duplicate and change nothing
	payments := &fakePaymentStore{payment: pendingPayment(), sumPaid: 500000}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 1.0)

	first, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, first.Outcome)

	payments.payment.Status = model.PaymentPaid
	bookings.booking.Status = model.BookingReserved
	bookings.booking.BalanceCents = 0

	second, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.BookingStatus, second.BookingStatus)
	assert.Equal(t, first.BalanceCents, second.BalanceCents)
}

func TestReconcileStaleSuccessAfterFailure(t *testing.T) {
	p := pendingPayment()
	p.Status = model.PaymentFailed
	payments := &fakePaymentStore{payment: p}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.False(t, payments.markedPaid)
}

func TestReconcileFailureCancelsOrphanedBooking(t *testing.T) {
	payments := &fakePaymentStore{payment: pendingPayment(), live: 0}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	pub := &recordingPublisher{}
	e := NewEngine(fakeRunner{}, payments, bookings, pub, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusFailure, "", "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.PaymentFailed, res.PaymentStatus)
	assert.Equal(t, model.BookingCanceled, res.BookingStatus)
	assert.True(t, payments.markedFail)
	assert.Equal(t, model.BookingCanceled, bookings.newStatus)
	require.Len(t, pub.settled, 1)
	assert.Empty(t, pub.reserved)
}

func TestReconcileFailureKeepsBookingWithOtherLivePayment(t *testing.T) {
	payments := &fakePaymentStore{payment: pendingPayment(), live: 1}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusFailure, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, res.BookingStatus)
	assert.Empty(t, bookings.newStatus)
}

func TestReconcileRefundRestoresBalance(t *testing.T) {
	p := pendingPayment()
	p.Status = model.PaymentPaid
	b := pendingBooking()
	b.Status = model.BookingReserved
	b.BalanceCents = 0
	payments := &fakePaymentStore{payment: p, sumPaid: 0}
	bookings := &fakeBookingStore{booking: b}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusRefunded, "", "rf_9")

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.PaymentRefunded, res.PaymentStatus)
	// refund never cancels the booking by itself
	assert.Equal(t, model.BookingReserved, res.BookingStatus)
	assert.Equal(t, int64(500000), res.BalanceCents)
	assert.True(t, payments.markedRef)
	assert.Equal(t, "rf_9", payments.refundRef)
	assert.Empty(t, bookings.newStatus)
}

func TestReconcileRefundOfUnsettledPaymentIsStale(t *testing.T) {
	payments := &fakePaymentStore{payment: pendingPayment()}
	bookings := &fakeBookingStore{booking: pendingBooking()}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusRefunded, "", "rf_9")

	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.False(t, payments.markedRef)
}

func TestReconcileLocksBookingBeforePayment(t *testing.T) {
	// Cancel and Initiate lock booking then payment rows; reconciliation
	// must follow the same order or two concurrent transactions form a
	// lock cycle (webhook holding the payment while cancel holds the
	// booking).  The intent is resolved with an unlocked read and only
	// then are row locks taken, booking first.
	var order []string
	payments := &fakePaymentStore{payment: pendingPayment(), sumPaid: 500000, order: &order}
	bookings := &fakeBookingStore{booking: pendingBooking(), order: &order}
	e := NewEngine(fakeRunner{}, payments, bookings, nil, 1.0)

	_, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusSuccess, "gwpay_1", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"payment read", "booking lock", "payment lock"}, order)
}

func TestReconcileUnknownIntentIsStale(t *testing.T) {
	e := NewEngine(fakeRunner{}, &fakePaymentStore{}, &fakeBookingStore{}, nil, 1.0)

	res, err := e.Reconcile(context.Background(), "pi_missing", gateway.StatusSuccess, "", "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
}

func TestReconcileUnknownStatusIsRetryable(t *testing.T) {
	payments := &fakePaymentStore{payment: pendingPayment()}
	e := NewEngine(fakeRunner{}, payments, &fakeBookingStore{booking: pendingBooking()}, nil, 1.0)

	_, err := e.Reconcile(context.Background(), "pi_123", gateway.StatusUnknown, "", "")

	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.False(t, payments.markedPaid)
	assert.False(t, payments.markedFail)
}
