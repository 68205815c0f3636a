package providers

import (
	"context"
	"fmt"
	"net/http"

	"travelmate/internal/models"
)

const (
	probeMessage   = "test"
	probeMaxTokens = 5
)

// New creates the provider for providerType. A nil client gets a default pooled client.
func New(providerType models.ProviderType, settings models.ProviderSettings, client *http.Client) (Provider, error) {
	switch providerType {
	case models.ProviderTypeOpenAI:
		return NewOpenAIProvider(settings, client), nil
	case models.ProviderTypeAnthropic:
		return NewAnthropicProvider(settings, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerType)
	}
}

// Probe sends a minimal request with settings and reports whether the endpoint
// answered with a 2xx or 3xx status. The response payload is not inspected.
func Probe(ctx context.Context, client *http.Client, providerType models.ProviderType, settings models.ProviderSettings) (bool, error) {
	p, err := New(providerType, settings, client)
	if err != nil {
		return false, err
	}

	status, err := p.Probe(ctx)
	if err != nil {
		return false, err
	}
	return ProbeSucceeded(status), nil
}

// ProbeSucceeded reports transport-level success for a probe status code
func ProbeSucceeded(status int) bool {
	return status >= 200 && status < 400
}
