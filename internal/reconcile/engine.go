// Package reconcile merges gateway-reported truth into local payment
// and booking state.  Truth arrives over two unordered channels — the
// client's synchronous verify call and the gateway's asynchronous
// webhook — possibly late, concurrently, or more than once.  The
// engine makes the merge idempotent and commutative: the booking and
// payment row locks (taken in that order, matching every other writer)
// serialize racing deliveries, the duplicate check makes redelivery a
// no-op, and both channels converge on the same final state regardless
// of arrival order.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/marvinagmata/tourism-room-booking/internal/booking"
	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/model"
	q "github.com/marvinagmata/tourism-room-booking/internal/queue"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
	"github.com/marvinagmata/tourism-room-booking/internal/txn"
)

type paymentStore interface {
	FindByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error)
	GetByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error)
	MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, gatewayPaymentID string) error
	MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64) error
	MarkRefundedTx(ctx context.Context, tx *sql.Tx, id uint64, refundRef string) error
	SumPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error)
	CountLiveTx(ctx context.Context, tx *sql.Tx, bookingID uint64, excludeID uint64) (int, error)
}

type bookingStore interface {
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, reason *string) error
	SetBalanceTx(ctx context.Context, tx *sql.Tx, id uint64, balanceCents int64) error
}

// Publisher emits domain events after a reconciliation commits.
// Publishing is best-effort: a broker outage never rolls back state.
type Publisher interface {
	PublishBookingReserved(ctx context.Context, event q.BookingReservedEvent) error
	PublishPaymentSettled(ctx context.Context, event q.PaymentSettledEvent) error
}

// Reconciliation outcomes.
const (
	OutcomeApplied   = "applied"   // state changed
	OutcomeDuplicate = "duplicate" // redelivery of already-applied truth
	OutcomeStale     = "stale"     // unknown intent or inconsistent report; discarded
)

// Result describes what a reconciliation did.  Stale and duplicate
// results are successes from the transport's point of view — the
// webhook deliverer must still be acknowledged to stop retries.
type Result struct {
	Outcome       string `json:"outcome"`
	PaymentStatus string `json:"payment_status,omitempty"`
	BookingStatus string `json:"booking_status,omitempty"`
	BalanceCents  int64  `json:"balance_cents,omitempty"`
}

// Engine drives payments and bookings forward from gateway truth.
type Engine struct {
	runner       txn.Runner
	payments     paymentStore
	bookings     bookingStore
	publisher    Publisher
	minPaidRatio float64
}

// NewEngine constructs an Engine.  minPaidRatio is the fraction of the
// total price that must be paid before PENDING moves to RESERVED
// (1.0 = full payment); it is business policy injected from config.
// publisher may be nil to disable event emission.
func NewEngine(runner txn.Runner, payments paymentStore, bookings bookingStore, publisher Publisher, minPaidRatio float64) *Engine {
	if runner == nil || payments == nil || bookings == nil {
		panic("nil dependency passed to NewEngine")
	}
	if minPaidRatio <= 0 || minPaidRatio > 1 {
		minPaidRatio = 1
	}
	return &Engine{runner: runner, payments: payments, bookings: bookings, publisher: publisher, minPaidRatio: minPaidRatio}
}

// Reconcile applies one piece of gateway truth identified by intentID.
// Safe under concurrent and duplicate invocation: the booking-then-
// payment row locks serialize racing calls and the duplicate check
// makes the outcome convergent whichever channel commits first.  An unknown
// reported status is transient gateway noise and returns
// gateway.ErrUnavailable without touching state.
func (e *Engine) Reconcile(ctx context.Context, intentID string, reported gateway.Status, gatewayPaymentID, refundRef string) (*Result, error) {
	if intentID == "" {
		return &Result{Outcome: OutcomeStale}, nil
	}
	if reported == gateway.StatusUnknown {
		return nil, gateway.ErrUnavailable
	}

	var result *Result
	var reservedEvent *q.BookingReservedEvent
	var settledEvent *q.PaymentSettledEvent

	err := e.runner.WithTx(ctx, func(tx *sql.Tx) error {
		// Every writer that touches both tables takes the booking row
		// lock before any payment row lock (Cancel and Initiate lock
		// booking first).  An unlocked read resolves the intent to its
		// booking, then locks follow the global order; the payment is
		// re-read under its lock since it may have settled in between.
		ref, err := e.payments.FindByIntentIDTx(ctx, tx, intentID)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				log.Printf("reconcile: discarding event for unknown intent %q", intentID)
				result = &Result{Outcome: OutcomeStale}
				return nil
			}
			return err
		}
		b, err := e.bookings.LockTx(ctx, tx, ref.BookingID)
		if err != nil {
			return err
		}
		p, err := e.payments.GetByIntentIDTx(ctx, tx, intentID)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				result = &Result{Outcome: OutcomeStale}
				return nil
			}
			return err
		}

		switch reported {
		case gateway.StatusSuccess:
			return e.applySuccess(ctx, tx, p, b, gatewayPaymentID, &result, &reservedEvent, &settledEvent)
		case gateway.StatusFailure:
			return e.applyFailure(ctx, tx, p, b, &result, &settledEvent)
		case gateway.StatusRefunded:
			return e.applyRefund(ctx, tx, p, b, refundRef, &result, &settledEvent)
		}
		result = &Result{Outcome: OutcomeStale}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, reservedEvent, settledEvent)
	return result, nil
}

func (e *Engine) applySuccess(ctx context.Context, tx *sql.Tx, p *model.Payment, b *model.Booking, gatewayPaymentID string, result **Result, reservedEvent **q.BookingReservedEvent, settledEvent **q.PaymentSettledEvent) error {
	switch p.Status {
	case model.PaymentPaid:
		*result = &Result{Outcome: OutcomeDuplicate, PaymentStatus: p.Status, BookingStatus: b.Status, BalanceCents: b.BalanceCents}
		return nil
	case model.PaymentFailed, model.PaymentRefunded:
		log.Printf("reconcile: discarding success report for finalized payment %s (status %s)", p.PublicID, p.Status)
		*result = &Result{Outcome: OutcomeStale, PaymentStatus: p.Status, BookingStatus: b.Status}
		return nil
	}

	if err := e.payments.MarkPaidTx(ctx, tx, p.ID, gatewayPaymentID); err != nil {
		return err
	}
	paid, err := e.payments.SumPaidTx(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	balance := b.TotalPriceCents - paid
	if err := e.bookings.SetBalanceTx(ctx, tx, b.ID, balance); err != nil {
		return err
	}

	bookingStatus := b.Status
	if b.Status == model.BookingPending && float64(paid) >= e.minPaidRatio*float64(b.TotalPriceCents) {
		if !booking.CanTransition(b.Status, model.BookingReserved) {
			return booking.ErrInvalidTransition
		}
		reason := "payment settled"
		if err := e.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingReserved, &reason); err != nil {
			return err
		}
		bookingStatus = model.BookingReserved
		*reservedEvent = &q.BookingReservedEvent{
			BookingID:       b.ID,
			ReferenceCode:   b.ReferenceCode,
			RoomID:          b.RoomID,
			GuestID:         b.GuestID,
			CheckInDate:     b.CheckInDate.Format("2006-01-02"),
			CheckOutDate:    b.CheckOutDate.Format("2006-01-02"),
			TotalPriceCents: b.TotalPriceCents,
			BalanceCents:    balance,
			ReservedAt:      time.Now().UTC().Format(time.RFC3339),
		}
	} else if b.Status == model.BookingCanceled {
		// Money arrived for a booking the sweep or the guest already
		// canceled; keep the payment record and leave the refund to
		// the operator.
		log.Printf("reconcile: payment %s settled against canceled booking %d", p.PublicID, b.ID)
	}

	*settledEvent = newSettledEvent(p, model.PaymentPaid, gatewayPaymentID)
	*result = &Result{Outcome: OutcomeApplied, PaymentStatus: model.PaymentPaid, BookingStatus: bookingStatus, BalanceCents: balance}
	return nil
}

func (e *Engine) applyFailure(ctx context.Context, tx *sql.Tx, p *model.Payment, b *model.Booking, result **Result, settledEvent **q.PaymentSettledEvent) error {
	switch p.Status {
	case model.PaymentFailed:
		*result = &Result{Outcome: OutcomeDuplicate, PaymentStatus: p.Status, BookingStatus: b.Status, BalanceCents: b.BalanceCents}
		return nil
	case model.PaymentPaid, model.PaymentRefunded:
		log.Printf("reconcile: discarding failure report for finalized payment %s (status %s)", p.PublicID, p.Status)
		*result = &Result{Outcome: OutcomeStale, PaymentStatus: p.Status, BookingStatus: b.Status}
		return nil
	}

	if err := e.payments.MarkFailedTx(ctx, tx, p.ID); err != nil {
		return err
	}
	bookingStatus := b.Status
	live, err := e.payments.CountLiveTx(ctx, tx, b.ID, p.ID)
	if err != nil {
		return err
	}
	if live == 0 && booking.CanTransition(b.Status, model.BookingCanceled) {
		reason := "payment failed"
		if err := e.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCanceled, &reason); err != nil {
			return err
		}
		bookingStatus = model.BookingCanceled
	}

	*settledEvent = newSettledEvent(p, model.PaymentFailed, "")
	*result = &Result{Outcome: OutcomeApplied, PaymentStatus: model.PaymentFailed, BookingStatus: bookingStatus, BalanceCents: b.BalanceCents}
	return nil
}

func (e *Engine) applyRefund(ctx context.Context, tx *sql.Tx, p *model.Payment, b *model.Booking, refundRef string, result **Result, settledEvent **q.PaymentSettledEvent) error {
	switch p.Status {
	case model.PaymentRefunded:
		*result = &Result{Outcome: OutcomeDuplicate, PaymentStatus: p.Status, BookingStatus: b.Status, BalanceCents: b.BalanceCents}
		return nil
	case model.PaymentPending, model.PaymentFailed:
		log.Printf("reconcile: discarding refund report for unsettled payment %s (status %s)", p.PublicID, p.Status)
		*result = &Result{Outcome: OutcomeStale, PaymentStatus: p.Status, BookingStatus: b.Status}
		return nil
	}

	if err := e.payments.MarkRefundedTx(ctx, tx, p.ID, refundRef); err != nil {
		return err
	}
	// The refunded amount no longer counts as paid; the booking's
	// status is a policy decision left to the caller since refunds can
	// be partial.
	paid, err := e.payments.SumPaidTx(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	balance := b.TotalPriceCents - paid
	if err := e.bookings.SetBalanceTx(ctx, tx, b.ID, balance); err != nil {
		return err
	}

	*settledEvent = newSettledEvent(p, model.PaymentRefunded, "")
	*result = &Result{Outcome: OutcomeApplied, PaymentStatus: model.PaymentRefunded, BookingStatus: b.Status, BalanceCents: balance}
	return nil
}

func newSettledEvent(p *model.Payment, status, gatewayPaymentID string) *q.PaymentSettledEvent {
	intent := ""
	if p.IntentID != nil {
		intent = *p.IntentID
	}
	return &q.PaymentSettledEvent{
		PaymentID:        p.PublicID,
		BookingID:        p.BookingID,
		IntentID:         intent,
		Status:           status,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		GatewayPaymentID: gatewayPaymentID,
		SettledAt:        time.Now().UTC().Format(time.RFC3339),
	}
}

// emit publishes events after the transaction committed.  Failures are
// logged and ignored so broker trouble never fails a reconciliation.
func (e *Engine) emit(ctx context.Context, reserved *q.BookingReservedEvent, settled *q.PaymentSettledEvent) {
	if e.publisher == nil {
		return
	}
	if settled != nil {
		if err := e.publisher.PublishPaymentSettled(ctx, *settled); err != nil {
			log.Printf("reconcile: publish payment.settled failed: %v", err)
		}
	}
	if reserved != nil {
		if err := e.publisher.PublishBookingReserved(ctx, *reserved); err != nil {
			log.Printf("reconcile: publish booking.reserved failed: %v", err)
		}
	}
}
