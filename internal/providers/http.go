package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"travelmate/internal/models"
)

const (
	// DefaultRequestTimeout bounds a provider round trip at the transport level
	DefaultRequestTimeout = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// NewHTTPClient creates the pooled HTTP client shared by provider instances.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// postJSON marshals body, applies auth and extra headers, and returns the
// status code and raw response body. Network faults come back as *TransportError.
func postJSON(ctx context.Context, client *http.Client, provider models.ProviderType, endpoint string,
	auth Authenticator, headers map[string]string, body any) (int, []byte, error) {

	// Authenticate first so a missing key never reaches the network
	authCtx, err := auth.Authenticate(ctx)
	if err != nil {
		return 0, nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	if err := authCtx.ApplyToRequest(ctx, httpReq); err != nil {
		return 0, nil, fmt.Errorf("failed to apply auth: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, &TransportError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Provider: provider, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return resp.StatusCode, respBody, nil
}

// errorFromResponse builds a ProviderError from a non-2xx response.
// Both APIs report failures as {"error": {"message": "..."}}.
func errorFromResponse(provider models.ProviderType, status int, body []byte) *ProviderError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	msg := unknownErrorMessage
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}

	return &ProviderError{Provider: provider, StatusCode: status, Message: msg}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// noRedirectClient returns a shallow copy of client that reports redirects
// instead of following them.
func noRedirectClient(client *http.Client) *http.Client {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}
