package pg

import "context"

// Provider identifies a payment gateway integration.
type Provider string

const (
	ProviderToss Provider = "toss"
)

// ConfirmResult carries the gateway's verdict on a payment confirmation.
// RawResponse is stored durably for dispute handling.
type ConfirmResult struct {
	Success     bool
	PaymentKey  string
	Message     string
	RawResponse []byte
}

// Adapter is the payment gateway boundary. The core only ever needs three
// things from a gateway: an order reference before money moves, a
// confirmation verdict, and webhook authenticity.
type Adapter interface {
	// Provider returns the name of the gateway this adapter talks to.
	Provider() string

	// CreateOrder makes the order reference known to the gateway before any
	// live payment record is written. A failure here means no payment is
	// pending anywhere.
	CreateOrder(ctx context.Context, orderID string, amount int64) error

	// Confirm asks the gateway to capture the payment.
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*ConfirmResult, error)

	// VerifySignature checks a webhook body against its signature header
	// using a constant-time compare.
	VerifySignature(body []byte, signature string) bool
}
