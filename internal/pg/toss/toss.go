// Package toss talks to the Toss Payments API. Confirmation is a single
// POST; webhook authenticity is an HMAC-SHA256 signature over the raw
// request body.
package toss

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	SecretKey     string
	BaseURL       string
	WebhookSecret string
}

type Client struct {
	secretKey     string
	baseURL       string
	webhookSecret string
	http          *http.Client
}

// ConfirmResponse is the decoded verdict of a confirm call. Raw keeps the
// unmodified gateway body.
type ConfirmResponse struct {
	OK         bool
	PaymentKey string
	Message    string
	Raw        []byte
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tosspayments.com"
	}
	return &Client{
		secretKey:     cfg.SecretKey,
		baseURL:       baseURL,
		webhookSecret: cfg.WebhookSecret,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

// ConfirmPayment captures a payment. A non-2xx answer is a gateway verdict,
// not a transport error: it comes back as OK=false with the gateway message.
func (c *Client) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*ConfirmResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payments/confirm", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+c.encodedKey())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("toss confirm request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("toss confirm response: %w", err)
	}

	var body struct {
		PaymentKey string `json:"paymentKey"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("toss confirm decode: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ConfirmResponse{OK: false, Message: body.Message, Raw: raw}, nil
	}
	return &ConfirmResponse{OK: true, PaymentKey: body.PaymentKey, Raw: raw}, nil
}

// VerifyWebhookSignature checks the base64 HMAC-SHA256 of the raw body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (c *Client) encodedKey() string {
	return base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
}
