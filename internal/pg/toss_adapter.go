package pg

import (
	"context"
	"fmt"

	"waitroom/internal/pg/toss"
)

// tossAdapter adapts the Toss client to the generic gateway interface.
type tossAdapter struct {
	client *toss.Client
}

func newTossAdapter(cfg Config) Adapter {
	return &tossAdapter{
		client: toss.New(toss.Config{
			SecretKey:     cfg.TossSecretKey,
			BaseURL:       cfg.TossBaseURL,
			WebhookSecret: cfg.WebhookSecret,
		}),
	}
}

func (a *tossAdapter) Provider() string {
	return string(ProviderToss)
}

// CreateOrder validates the order locally. Toss registers orders at
// confirmation time, so there is no remote call to make; a zero or negative
// amount is the only way initiation can fail at this boundary.
func (a *tossAdapter) CreateOrder(ctx context.Context, orderID string, amount int64) error {
	if orderID == "" {
		return fmt.Errorf("toss: empty order id")
	}
	if amount <= 0 {
		return fmt.Errorf("toss: invalid order amount %d", amount)
	}
	return nil
}

func (a *tossAdapter) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*ConfirmResult, error) {
	resp, err := a.client.ConfirmPayment(ctx, paymentKey, orderID, amount)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		Success:     resp.OK,
		PaymentKey:  resp.PaymentKey,
		Message:     resp.Message,
		RawResponse: resp.Raw,
	}, nil
}

func (a *tossAdapter) VerifySignature(body []byte, signature string) bool {
	return a.client.VerifyWebhookSignature(body, signature)
}
