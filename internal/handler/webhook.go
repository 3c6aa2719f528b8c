package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/reconcile"
)

// WebhookHandler receives asynchronous settlement notifications from
// the payment gateway.  Deliveries are at-least-once and unordered, so
// the handler acknowledges stale and duplicate events with 200 to stop
// redelivery, and only returns an error status when processing could
// succeed on retry.
type WebhookHandler struct {
	Engine *reconcile.Engine
	secret string // shared HMAC key; empty disables signature checks
}

// NewWebhookHandler constructs a WebhookHandler.  An empty secret
// disables signature verification and is only acceptable in dev.
func NewWebhookHandler(engine *reconcile.Engine, secret string) *WebhookHandler {
	if engine == nil {
		panic("nil engine passed to NewWebhookHandler")
	}
	return &WebhookHandler{Engine: engine, secret: secret}
}

// webhookPayload is the gateway's event envelope.  Only the fields the
// reconciliation engine needs are decoded; the rest of the payload is
// ignored.
type webhookPayload struct {
	EventType string `json:"event_type"`
	Data      struct {
		IntentID         string `json:"intent_id"`
		Status           string `json:"status"`
		GatewayPaymentID string `json:"payment_id"`
		RefundRef        string `json:"refund_id"`
	} `json:"data"`
}

// Receive handles POST /v1/payments/webhook.  The signature is an
// HMAC-SHA256 of the raw body, hex encoded, in the X-Gateway-Signature
// header.  Verification must run on the exact bytes received, before
// any JSON decoding.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	if h.secret != "" && !h.validSignature(body, c.Request().Header.Get("X-Gateway-Signature")) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if payload.Data.IntentID == "" {
		// not an intent event; acknowledge so the gateway stops resending
		log.Printf("webhook: ignoring event type %q without intent id", payload.EventType)
		return c.JSON(http.StatusOK, echo.Map{"outcome": reconcile.OutcomeStale})
	}

	status := gateway.MapStatus(payload.Data.Status)
	result, err := h.Engine.Reconcile(c.Request().Context(), payload.Data.IntentID, status, payload.Data.GatewayPaymentID, payload.Data.RefundRef)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			// unrecognized status; ask the gateway to redeliver later
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "retry later"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (h *WebhookHandler) validSignature(body []byte, header string) bool {
	sig, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
