package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
	"github.com/marvinagmata/tourism-room-booking/internal/reconcile"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
	"github.com/marvinagmata/tourism-room-booking/internal/txn"
)

type passRunner struct{}

func (passRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

var _ txn.Runner = passRunner{}

type stubPayments struct {
	payment *model.Payment
	paid    bool
}

func (s *stubPayments) FindByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error) {
	if s.payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	return s.payment, nil
}

func (s *stubPayments) GetByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error) {
	if s.payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	return s.payment, nil
}

func (s *stubPayments) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, gatewayPaymentID string) error {
	s.paid = true
	return nil
}

func (s *stubPayments) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64) error { return nil }

func (s *stubPayments) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id uint64, refundRef string) error {
	return nil
}

func (s *stubPayments) SumPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	return s.payment.AmountCents, nil
}

func (s *stubPayments) CountLiveTx(ctx context.Context, tx *sql.Tx, bookingID uint64, excludeID uint64) (int, error) {
	return 0, nil
}

type stubBookings struct {
	booking *model.Booking
}

func (s *stubBookings) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return s.booking, nil
}

func (s *stubBookings) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, reason *string) error {
	s.booking.Status = status
	return nil
}

func (s *stubBookings) SetBalanceTx(ctx context.Context, tx *sql.Tx, id uint64, balanceCents int64) error {
	s.booking.BalanceCents = balanceCents
	return nil
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func deliver(t *testing.T, h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Gateway-Signature", signature)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Receive(e.NewContext(req, rec)))
	return rec
}

func newTestEngine(payments *stubPayments, bookings *stubBookings) *reconcile.Engine {
	return reconcile.NewEngine(passRunner{}, payments, bookings, nil, 1.0)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	payments := &stubPayments{}
	h := NewWebhookHandler(newTestEngine(payments, &stubBookings{}), "whsec")

	body := `{"data":{"intent_id":"pi_1","status":"paid"}}`

	rec := deliver(t, h, body, sign("wrong-secret", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = deliver(t, h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.False(t, payments.paid)
}

func TestWebhookAppliesSettlement(t *testing.T) {
	intent := "pi_1"
	payments := &stubPayments{payment: &model.Payment{
		ID: 7, PublicID: "pay-7", BookingID: 3,
		Status: model.PaymentPending, AmountCents: 500000, IntentID: &intent,
	}}
	bookings := &stubBookings{booking: &model.Booking{
		ID: 3, Status: model.BookingPending, TotalPriceCents: 500000, BalanceCents: 500000,
	}}
	h := NewWebhookHandler(newTestEngine(payments, bookings), "whsec")

	body := `{"event_type":"payment.paid","data":{"intent_id":"pi_1","status":"paid","payment_id":"gwpay_1"}}`
	rec := deliver(t, h, body, sign("whsec", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, payments.paid)
	assert.Equal(t, model.BookingReserved, bookings.booking.Status)
	assert.Contains(t, rec.Body.String(), `"outcome":"applied"`)
}

func TestWebhookAcksUnknownIntent(t *testing.T) {
	h := NewWebhookHandler(newTestEngine(&stubPayments{}, &stubBookings{}), "whsec")

	body := `{"data":{"intent_id":"pi_gone","status":"paid"}}`
	rec := deliver(t, h, body, sign("whsec", body))

	// unmatched events must be acknowledged or the gateway retries forever
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"stale"`)
}

func TestWebhookAcksEventWithoutIntent(t *testing.T) {
	h := NewWebhookHandler(newTestEngine(&stubPayments{}, &stubBookings{}), "whsec")

	body := `{"event_type":"payout.created","data":{}}`
	rec := deliver(t, h, body, sign("whsec", body))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRetriesUnrecognizedStatus(t *testing.T) {
	intent := "pi_1"
	payments := &stubPayments{payment: &model.Payment{
		ID: 7, BookingID: 3, Status: model.PaymentPending, AmountCents: 100, IntentID: &intent,
	}}
	bookings := &stubBookings{booking: &model.Booking{ID: 3, Status: model.BookingPending}}
	h := NewWebhookHandler(newTestEngine(payments, bookings), "whsec")

	body := `{"data":{"intent_id":"pi_1","status":"processing"}}`
	rec := deliver(t, h, body, sign("whsec", body))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, payments.paid)
}
