package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the provider's HMAC for webhook deliveries.
const SignatureHeader = "X-Gateway-Signature"

// Webhook event types the reconciler understands.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// Client talks to the payment provider's REST API. All calls authenticate
// with the merchant secret; webhook verification uses a separate shared
// secret so a leaked API key cannot forge notifications.
type Client struct {
	BaseURL       string
	Secret        string
	WebhookSecret string
	HTTP          *http.Client
}

func New(baseURL, secret, webhookSecret string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Secret:        secret,
		WebhookSecret: webhookSecret,
		HTTP:          &http.Client{Timeout: 10 * time.Second},
	}
}

type CheckoutRequest struct {
	Reference   string `json:"reference"` // merchant-side payment id
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Customer    string `json:"customer_email"`
	ReturnURL   string `json:"return_url,omitempty"`
}

type CheckoutSession struct {
	Reference   string `json:"reference"` // provider-side charge reference
	CheckoutURL string `json:"checkout_url"`
}

type apiEnvelope struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// InitializeCheckout registers a charge with the provider and returns the
// hosted checkout session the buyer is redirected to.
func (c *Client) InitializeCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	var out CheckoutSession
	env, err := c.post(ctx, "/checkout/init", req)
	if err != nil {
		return out, err
	}
	if env.CheckoutURL == "" {
		return out, fmt.Errorf("gateway returned empty checkout URL")
	}
	out.Reference = env.Reference
	out.CheckoutURL = env.CheckoutURL
	return out, nil
}

// CancelCharge asks the provider to void a charge. Callers treat failures as
// best-effort: the local cancellation proceeds either way.
func (c *Client) CancelCharge(ctx context.Context, ref string) error {
	_, err := c.post(ctx, "/checkout/cancel", map[string]string{"reference": ref})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) (apiEnvelope, error) {
	var env apiEnvelope

	body, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return env, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Secret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return env, fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return env, fmt.Errorf("gateway error (%d): %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if env.Error != nil {
		return env, fmt.Errorf("gateway error: %s", env.Error.Message)
	}
	return env, nil
}

// Event is a provider webhook notification. Payload fields are only read
// after the delivery's signature has been verified.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Reference   string `json:"reference"`
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
		Reason      string `json:"reason,omitempty"`
	} `json:"data"`
}

// Sign computes the webhook signature for a raw body: lowercase hex of
// HMAC-SHA256 under the webhook shared secret.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a delivery's signature header in constant time.
// A missing secret or header always fails closed.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	got := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(c.Sign(body)), []byte(got))
}
