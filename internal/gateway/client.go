package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the provider's REST API over HTTPS with a bounded
// timeout.  The provider exposes an intent-first workflow: an intent is
// created with the amount, the payer picks a method on the hosted
// checkout page, and completion is confirmed asynchronously.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewClient returns a Client for the given API base URL and secret
// key.  The timeout bounds every call; a timed-out call surfaces as
// ErrUnavailable, never as a definitive payment outcome.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

type createIntentRequest struct {
	AmountCents int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Method      string            `json:"payment_method_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	MethodRef   string `json:"payment_method_id"`
	ClientKey   string `json:"client_key"`
	PaymentID   string `json:"payment_id"`
	RefundID    string `json:"refund_id"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure or timeout: transient, not a payment outcome.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// CreateCheckoutIntent opens a new intent with the provider and
// returns its identifier plus the hosted checkout URL.
func (c *Client) CreateCheckoutIntent(ctx context.Context, amountCents int64, currency, method string, metadata map[string]string) (*CheckoutIntent, error) {
	var resp intentResponse
	err := c.do(ctx, http.MethodPost, "/v1/checkout_intents", createIntentRequest{
		AmountCents: amountCents,
		Currency:    currency,
		Method:      method,
		Metadata:    metadata,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &CheckoutIntent{
		IntentID:    resp.ID,
		CheckoutURL: resp.CheckoutURL,
		MethodRef:   resp.MethodRef,
		ClientKey:   resp.ClientKey,
	}, nil
}

// GetIntentStatus queries the provider for the current status of an
// intent.  The raw status string is preserved alongside the mapped
// enumeration for logging.
func (c *Client) GetIntentStatus(ctx context.Context, intentID string) (*IntentStatus, error) {
	var resp intentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout_intents/"+intentID, nil, &resp); err != nil {
		return nil, err
	}
	return &IntentStatus{
		Status:           MapStatus(resp.Status),
		Raw:              resp.Status,
		GatewayPaymentID: resp.PaymentID,
		RefundRef:        resp.RefundID,
	}, nil
}
