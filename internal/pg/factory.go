package pg

import "fmt"

// Config holds the gateway credentials for whichever provider is selected.
type Config struct {
	Provider      Provider
	TossSecretKey string
	TossBaseURL   string
	WebhookSecret string
}

// NewAdapter builds the adapter for the configured provider.
func NewAdapter(cfg Config) (Adapter, error) {
	switch cfg.Provider {
	case ProviderToss:
		return newTossAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported payment gateway provider: %q", cfg.Provider)
	}
}

// SupportedProviders lists the gateways this build can talk to.
func SupportedProviders() []Provider {
	return []Provider{ProviderToss}
}
