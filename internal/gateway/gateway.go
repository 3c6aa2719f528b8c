// Package gateway abstracts the external payment provider.  The
// provider hosts the checkout page: this service creates an intent,
// redirects the payer to the returned URL, and later learns the
// outcome through a synchronous status query or an asynchronous
// webhook.  Provider status strings are loose; they are mapped at this
// boundary into a closed set and never interpreted anywhere else.
package gateway

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned for transient failures talking to the
// provider: network errors, timeouts and 5xx responses.  It must never
// be converted into a payment or booking state change; callers retry
// with backoff.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ErrRejected is returned when the provider definitively refuses a
// request (4xx).  Not retryable as-is.
var ErrRejected = errors.New("payment gateway rejected request")

// Status is the closed set of provider-reported payment outcomes.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusRefunded Status = "refunded"
)

// MapStatus converts a raw provider status string into the closed
// enumeration.  Anything unrecognized maps to StatusUnknown, which
// callers treat like a transient gateway failure: never a silent
// success, never a definitive failure.
func MapStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "succeeded", "success", "payment.paid":
		return StatusSuccess
	case "failed", "failure", "payment.failed", "expired":
		return StatusFailure
	case "refunded", "payment.refunded":
		return StatusRefunded
	default:
		return StatusUnknown
	}
}

// CheckoutIntent is the provider's handle for one payment attempt.
// IntentID is the idempotency key for all truth about the attempt.
type CheckoutIntent struct {
	IntentID    string
	CheckoutURL string
	MethodRef   string
	ClientKey   string
}

// IntentStatus is the provider's current view of an intent.
type IntentStatus struct {
	Status           Status
	Raw              string
	GatewayPaymentID string
	RefundRef        string
}

// PaymentGateway is the injected capability for talking to the
// provider.  Tests substitute a fake that returns deterministic
// success, failure and duplicate events.
type PaymentGateway interface {
	CreateCheckoutIntent(ctx context.Context, amountCents int64, currency, method string, metadata map[string]string) (*CheckoutIntent, error)
	GetIntentStatus(ctx context.Context, intentID string) (*IntentStatus, error)
}
