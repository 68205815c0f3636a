package providers

import (
	"context"
	"fmt"
	"net/http"
)

// SimpleAPIKeyAuth implements API key authentication in a single header
type SimpleAPIKeyAuth struct {
	apiKey     string
	headerName string // e.g., "Authorization"
	prefix     string // e.g., "Bearer "
}

// NewSimpleAPIKeyAuth creates a new simple API key authenticator.
// Empty header and prefix default to an OpenAI-style bearer token.
func NewSimpleAPIKeyAuth(apiKey, headerName, prefix string) *SimpleAPIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
	}
	if prefix == "" && headerName == "Authorization" {
		prefix = "Bearer "
	}

	return &SimpleAPIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
		prefix:     prefix,
	}
}

// NewHeaderAPIKeyAuth sends the raw key in headerName (Anthropic-style x-api-key)
func NewHeaderAPIKeyAuth(apiKey, headerName string) *SimpleAPIKeyAuth {
	return &SimpleAPIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
	}
}

// Authenticate returns an auth context with the API key
func (a *SimpleAPIKeyAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	if a.apiKey == "" {
		return nil, ErrMissingCredential
	}

	return &SimpleAPIKeyAuthContext{
		apiKey:     a.apiKey,
		headerName: a.headerName,
		prefix:     a.prefix,
	}, nil
}

// SimpleAPIKeyAuthContext holds the auth context for API key authentication
type SimpleAPIKeyAuthContext struct {
	apiKey     string
	headerName string
	prefix     string
}

// ApplyToRequest adds the API key to the HTTP request
func (c *SimpleAPIKeyAuthContext) ApplyToRequest(ctx context.Context, req any) error {
	httpReq, ok := req.(*http.Request)
	if !ok {
		return fmt.Errorf("expected *http.Request, got %T", req)
	}

	httpReq.Header.Set(c.headerName, c.prefix+c.apiKey)
	return nil
}
