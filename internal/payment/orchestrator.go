// Package payment creates and tracks payment attempts against the
// external gateway.  The orchestrator only ever creates payment rows;
// after creation the reconciliation engine owns them.
package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/model"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
	"github.com/marvinagmata/tourism-room-booking/internal/txn"
)

// ErrValidation is returned for a non-positive amount, an amount above
// the outstanding balance, or a missing payment method.
var ErrValidation = errors.New("invalid payment request")

// ErrBookingClosed is returned when payment is initiated against a
// canceled or checked-out booking.
var ErrBookingClosed = errors.New("booking is closed for payment")

type bookingStore interface {
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
}

type paymentStore interface {
	ActivePendingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, payerType string, payerID *uint64) (*model.Payment, error)
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
}

// Orchestrator opens gateway checkout intents for bookings.
type Orchestrator struct {
	runner   txn.Runner
	bookings bookingStore
	payments paymentStore
	gw       gateway.PaymentGateway
	currency string
}

// NewOrchestrator constructs an Orchestrator.  currency is the ISO
// 4217 code every intent is denominated in.
func NewOrchestrator(runner txn.Runner, bookings bookingStore, payments paymentStore, gw gateway.PaymentGateway, currency string) *Orchestrator {
	if runner == nil || bookings == nil || payments == nil || gw == nil {
		panic("nil dependency passed to NewOrchestrator")
	}
	return &Orchestrator{runner: runner, bookings: bookings, payments: payments, gw: gw, currency: currency}
}

// InitiateInput identifies the booking, the payer and the attempt.
// AmountCents nil means "the booking's outstanding balance".
type InitiateInput struct {
	BookingID   uint64
	PayerType   string
	PayerID     *uint64
	Method      string
	PaymentType string
	AmountCents *int64
}

// InitiateResult is returned to the client so it can redirect the
// payer to the hosted checkout.
type InitiateResult struct {
	Payment     *model.Payment
	CheckoutURL string
	IntentID    string
	Resumed     bool
}

// Initiate opens (or resumes) a payment attempt.  When the payer
// already has a live pending intent for this booking, that intent is
// returned again instead of opening a duplicate — repeated client
// retries therefore cannot accumulate orphaned intents.  The local
// payment row is committed before the checkout URL is handed back, so
// a webhook arriving the moment the payer finishes always finds a
// matching record.  A gateway failure surfaces unchanged and leaves no
// local state behind.
//
// The gateway round trip runs between two short transactions, never
// under the booking row lock: a slow gateway must not stall
// cancellation, check-in or webhook reconciliation of the same
// booking.
func (o *Orchestrator) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if in.Method == "" {
		return nil, ErrValidation
	}
	if in.PaymentType == "" {
		in.PaymentType = model.PaymentTypeFull
	}
	if in.PaymentType != model.PaymentTypeFull && in.PaymentType != model.PaymentTypePartial {
		return nil, ErrValidation
	}
	var (
		result    *InitiateResult
		amount    int64
		reference string
	)
	// Validate and resume under the booking row lock.  The lock is
	// released before any network call.
	err := o.runner.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := o.bookings.LockTx(ctx, tx, in.BookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCanceled || b.Status == model.BookingCheckedOut {
			return ErrBookingClosed
		}
		amount = b.BalanceCents
		if in.AmountCents != nil {
			amount = *in.AmountCents
		}
		if amount <= 0 || amount > b.BalanceCents {
			return ErrValidation
		}
		reference = b.ReferenceCode
		// Resume a live intent for the same payer rather than opening
		// a second one.
		existing, err := o.payments.ActivePendingTx(ctx, tx, b.ID, in.PayerType, in.PayerID)
		switch {
		case err == nil:
			result = resumeResult(existing)
			return nil
		case !errors.Is(err, repository.ErrPaymentNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	intent, err := o.gw.CreateCheckoutIntent(ctx, amount, o.currency, in.Method, map[string]string{
		"booking_reference": reference,
	})
	if err != nil {
		return nil, err
	}
	// Record the open intent.  The booking is re-read under its lock
	// since it may have closed, settled or gained a competing intent
	// while the gateway round trip ran.
	err = o.runner.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := o.bookings.LockTx(ctx, tx, in.BookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCanceled || b.Status == model.BookingCheckedOut {
			log.Printf("payment: abandoning intent %s, booking %s closed during checkout setup", intent.IntentID, b.ReferenceCode)
			return ErrBookingClosed
		}
		if amount > b.BalanceCents {
			log.Printf("payment: abandoning intent %s, balance on booking %s dropped below %d", intent.IntentID, b.ReferenceCode, amount)
			return ErrValidation
		}
		existing, err := o.payments.ActivePendingTx(ctx, tx, b.ID, in.PayerType, in.PayerID)
		switch {
		case err == nil:
			// A concurrent request won the race; hand back its intent
			// and let ours expire unpaid at the gateway.
			log.Printf("payment: abandoning intent %s, booking %s already has a live intent", intent.IntentID, b.ReferenceCode)
			result = resumeResult(existing)
			return nil
		case !errors.Is(err, repository.ErrPaymentNotFound):
			return err
		}
		meta, _ := json.Marshal(map[string]string{"client_key": intent.ClientKey})
		metaStr := string(meta)
		p := &model.Payment{
			PublicID:    uuid.NewString(),
			BookingID:   b.ID,
			PayerType:   in.PayerType,
			PayerID:     in.PayerID,
			AmountCents: amount,
			Currency:    o.currency,
			Method:      in.Method,
			PaymentType: in.PaymentType,
			Status:      model.PaymentPending,
			IntentID:    &intent.IntentID,
			Metadata:    &metaStr,
		}
		if intent.MethodRef != "" {
			p.MethodRef = &intent.MethodRef
		}
		if intent.CheckoutURL != "" {
			p.CheckoutURL = &intent.CheckoutURL
		}
		if err := o.payments.CreateTx(ctx, tx, p); err != nil {
			return err
		}
		result = &InitiateResult{Payment: p, CheckoutURL: intent.CheckoutURL, IntentID: intent.IntentID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func resumeResult(existing *model.Payment) *InitiateResult {
	return &InitiateResult{
		Payment:     existing,
		IntentID:    deref(existing.IntentID),
		CheckoutURL: deref(existing.CheckoutURL),
		Resumed:     true,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
