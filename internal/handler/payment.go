package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/model"
	"github.com/marvinagmata/tourism-room-booking/internal/payment"
	"github.com/marvinagmata/tourism-room-booking/internal/reconcile"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
)

// PaymentHandler exposes payment initiation and verification for a
// booking.  Initiation talks to the gateway synchronously; settlement
// truth flows back through Verify (client pull) and the webhook
// (gateway push), both of which converge in the reconciliation engine.
type PaymentHandler struct {
	Orchestrator *payment.Orchestrator
	Engine       *reconcile.Engine
	Gateway      gateway.PaymentGateway
	Payments     paymentStore
	Bookings     bookingStore
	Rooms        roomStore
}

// NewPaymentHandler constructs a PaymentHandler.  All dependencies
// must be non-nil.
func NewPaymentHandler(orch *payment.Orchestrator, engine *reconcile.Engine, gw gateway.PaymentGateway, payments paymentStore, bookings bookingStore, rooms roomStore) *PaymentHandler {
	if orch == nil || engine == nil || gw == nil || payments == nil || bookings == nil || rooms == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Orchestrator: orch, Engine: engine, Gateway: gw, Payments: payments, Bookings: bookings, Rooms: rooms}
}

// initiateRequest is the body of POST /v1/bookings/:id/payments.
// amount_cents omitted or zero means "pay the outstanding balance".
type initiateRequest struct {
	Method      string `json:"method" validate:"required"`
	PaymentType string `json:"payment_type" validate:"omitempty,oneof=FULL PARTIAL"`
	AmountCents *int64 `json:"amount_cents" validate:"omitempty,min=1"`
}

// Initiate handles POST /v1/bookings/:id/payments.  Repeating the call
// while a pending attempt is live returns the same checkout URL again
// instead of opening a duplicate gateway intent.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := authorizeBooking(c, h.Bookings, h.Rooms)
	if err != nil {
		return domainError(c, err)
	}
	var body initiateRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	payerType := model.PayerTourist
	if getRole(c) == model.PayerBusiness {
		payerType = model.PayerBusiness
	}
	paymentType := body.PaymentType
	if paymentType == "" {
		paymentType = model.PaymentTypeFull
	}
	res, err := h.Orchestrator.Initiate(c.Request().Context(), payment.InitiateInput{
		BookingID:   b.ID,
		PayerType:   payerType,
		PayerID:     &userID,
		Method:      body.Method,
		PaymentType: paymentType,
		AmountCents: body.AmountCents,
	})
	if err != nil {
		return domainError(c, err)
	}
	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"payment":      res.Payment,
		"checkout_url": res.CheckoutURL,
		"intent_id":    res.IntentID,
		"resumed":      res.Resumed,
	})
}

// Verify handles POST /v1/bookings/:id/payments/:paymentID/verify.
// It asks the gateway for the intent's current status and reconciles
// the answer into local state.  Safe to repeat: a second verify of a
// settled payment reports outcome "duplicate" and changes nothing.
// A payment id the system no longer knows, or an intent the gateway
// refuses to look up, is acknowledged as stale rather than erred —
// verify carries settlement events, and events about vanished state
// are answered the same way the webhook answers them.
func (h *PaymentHandler) Verify(c echo.Context) error {
	b, err := authorizeBooking(c, h.Bookings, h.Rooms)
	if err != nil {
		return domainError(c, err)
	}
	publicID := c.Param("paymentID")
	if publicID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid paymentID"})
	}
	ctx := c.Request().Context()
	p, err := h.Payments.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return c.JSON(http.StatusOK, &reconcile.Result{Outcome: reconcile.OutcomeStale})
		}
		return domainError(c, err)
	}
	if p.BookingID != b.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	}
	if p.IntentID == nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "payment has no gateway intent"})
	}

	st, err := h.Gateway.GetIntentStatus(ctx, *p.IntentID)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			log.Printf("verify: gateway rejected lookup of intent %s for payment %s", *p.IntentID, p.PublicID)
			return c.JSON(http.StatusOK, &reconcile.Result{Outcome: reconcile.OutcomeStale})
		}
		return domainError(c, err)
	}
	result, err := h.Engine.Reconcile(ctx, *p.IntentID, st.Status, st.GatewayPaymentID, st.RefundRef)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
