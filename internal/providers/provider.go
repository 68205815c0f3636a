package providers

import (
	"context"

	"travelmate/internal/models"
)

// CompletionRequest is the provider-neutral input of a single chat completion.
// Each provider maps it onto its own envelope.
type CompletionRequest struct {
	SystemPrompt string
	History      []models.Turn // already truncated by the caller
	Message      string
}

// Provider is implemented by each hosted chat-completion API (OpenAI, Anthropic).
type Provider interface {
	// Type returns the provider identifier
	Type() models.ProviderType

	// Complete sends one chat completion request and returns the trimmed reply text
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Probe sends a minimal request and returns the raw HTTP status code
	Probe(ctx context.Context) (int, error)
}

// Authenticator handles authentication for a provider.
// Both supported providers use a static API key in a header:
// - Bearer token in Authorization (OpenAI)
// - Raw key in x-api-key (Anthropic)
type Authenticator interface {
	// Authenticate prepares authentication for a request
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext holds authentication information for a request
type AuthContext interface {
	// ApplyToRequest applies authentication to an HTTP request
	ApplyToRequest(ctx context.Context, req any) error
}
