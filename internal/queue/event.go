// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingReservedEvent is published when reconciliation moves a booking
// to RESERVED.  It carries enough information for downstream consumers
// to notify the guest or trigger analytics without querying the
// primary database.
type BookingReservedEvent struct {
	BookingID       uint64  `json:"booking_id"`
	ReferenceCode   string  `json:"reference_code"`
	RoomID          uint64  `json:"room_id"`
	GuestID         *uint64 `json:"guest_id,omitempty"`
	CheckInDate     string  `json:"check_in"`
	CheckOutDate    string  `json:"check_out"`
	TotalPriceCents int64   `json:"total_price_cents"`
	BalanceCents    int64   `json:"balance_cents"`
	ReservedAt      string  `json:"reserved_at"`
}

// PaymentSettledEvent is published when a payment reaches a terminal
// status (paid, failed or refunded) during reconciliation.
type PaymentSettledEvent struct {
	PaymentID        string `json:"payment_id"`
	BookingID        uint64 `json:"booking_id"`
	IntentID         string `json:"intent_id"`
	Status           string `json:"status"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	SettledAt        string `json:"settled_at"`
}
