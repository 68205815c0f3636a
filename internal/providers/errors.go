package providers

import (
	"errors"
	"fmt"

	"travelmate/internal/models"
)

var (
	// ErrMissingCredential is returned before any network call when no API key is configured
	ErrMissingCredential = errors.New("provider credential is not configured")

	// ErrUnknownProvider is returned by the factory for unrecognized provider types
	ErrUnknownProvider = errors.New("unknown provider")
)

// unknownErrorMessage is used when the provider does not report an error message
const unknownErrorMessage = "Unknown error"

// ProviderError reports a non-2xx status or an unreadable success body.
type ProviderError struct {
	Provider   models.ProviderType
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Message)
}

// TransportError wraps network faults (DNS, refused connections, timeouts, cancellation).
type TransportError struct {
	Provider models.ProviderType
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
