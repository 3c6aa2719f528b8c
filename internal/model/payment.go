package model

import "time"

// Payment status enumeration.  Statuses are lowercase because they
// mirror the gateway's vocabulary; they are mapped at the boundary into
// this closed set and never stored raw.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Payment types.
const (
	PaymentTypeFull    = "FULL"
	PaymentTypePartial = "PARTIAL"
)

// Payer types.
const (
	PayerTourist  = "TOURIST"
	PayerBusiness = "BUSINESS"
)

// Payment is one attempt to collect money toward a booking.  The
// gateway intent identifier is the idempotency key for reconciliation:
// it carries a unique index and every piece of gateway truth (verify
// result or webhook) is matched to a local row through it.  At most
// one payment may be the active pending intent for a booking+payer
// pair; a new attempt resumes it instead of creating a duplicate.
//
// The orchestrator creates payments; after creation only the
// reconciliation engine mutates them.
// Clients address payments by PublicID only; the numeric primary key
// and the raw provider metadata never leave the service.
type Payment struct {
	ID               uint64    `json:"-"`                            // payments.id
	PublicID         string    `json:"payment_id"`                   // payments.public_id (opaque, returned to clients)
	BookingID        uint64    `json:"booking_id"`                   // payments.booking_id
	PayerType        string    `json:"payer_type"`                   // payments.payer_type (TOURIST, BUSINESS)
	PayerID          *uint64   `json:"payer_id,omitempty"`           // payments.payer_id (nullable for walk-ins)
	AmountCents      int64     `json:"amount_cents"`                 // payments.amount_cents
	Currency         string    `json:"currency"`                     // payments.currency (ISO 4217)
	Method           string    `json:"method"`                       // payments.method (card, gcash, ...)
	PaymentType      string    `json:"payment_type"`                 // payments.payment_type (FULL, PARTIAL)
	Status           string    `json:"status"`                       // payments.status
	IntentID         *string   `json:"intent_id,omitempty"`          // payments.intent_id (gateway intent, idempotency key)
	MethodRef        *string   `json:"method_ref,omitempty"`         // payments.method_ref (gateway payment method id)
	GatewayPaymentID *string   `json:"gateway_payment_id,omitempty"` // payments.gateway_payment_id (set once settled)
	RefundRef        *string   `json:"refund_ref,omitempty"`         // payments.refund_ref (gateway refund reference)
	CheckoutURL      *string   `json:"checkout_url,omitempty"`       // payments.checkout_url (hosted checkout redirect)
	Metadata         *string   `json:"-"`                            // payments.metadata (free-form provider JSON)
	CreatedAt        time.Time `json:"created_at"`                   // payments.created_at
	UpdatedAt        time.Time `json:"-"`                            // payments.updated_at
}
