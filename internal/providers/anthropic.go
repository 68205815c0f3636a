package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"travelmate/internal/models"
)

// AnthropicVersion is the Messages API version header value
const AnthropicVersion = "2023-06-01"

// AnthropicProvider implements the Provider interface for the Anthropic Messages API.
// The system prompt travels in its own field, never inside the message array.
type AnthropicProvider struct {
	settings models.ProviderSettings
	auth     Authenticator
	client   *http.Client
	headers  map[string]string
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider(settings models.ProviderSettings, client *http.Client) *AnthropicProvider {
	if client == nil {
		client = NewHTTPClient(DefaultRequestTimeout)
	}

	return &AnthropicProvider{
		settings: settings,
		auth:     NewHeaderAPIKeyAuth(settings.Credential, "x-api-key"),
		client:   client,
		headers: map[string]string{
			"anthropic-version": AnthropicVersion,
		},
	}
}

// Type returns the provider type
func (p *AnthropicProvider) Type() models.ProviderType {
	return models.ProviderTypeAnthropic
}

func (p *AnthropicProvider) buildRequest(req CompletionRequest) anthropicRequest {
	messages := make([]anthropicMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		messages = append(messages, anthropicMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, anthropicMessage{Role: string(models.RoleUser), Content: req.Message})

	return anthropicRequest{
		Model:     p.settings.Model,
		MaxTokens: p.settings.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  messages,
	}
}

// Complete sends a Messages API request to Anthropic
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	status, body, err := postJSON(ctx, p.client, p.Type(), p.settings.Endpoint, p.auth, p.headers, p.buildRequest(req))
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", errorFromResponse(p.Type(), status, body)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ProviderError{Provider: p.Type(), StatusCode: status, Message: "malformed response body"}
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return "", &ProviderError{Provider: p.Type(), StatusCode: status, Message: "response has no content[0].text"}
	}

	return strings.TrimSpace(*resp.Content[0].Text), nil
}

// Probe sends the minimal connection test request
func (p *AnthropicProvider) Probe(ctx context.Context) (int, error) {
	probe := anthropicRequest{
		Model:     p.settings.Model,
		MaxTokens: probeMaxTokens,
		Messages:  []anthropicMessage{{Role: string(models.RoleUser), Content: probeMessage}},
	}

	status, _, err := postJSON(ctx, noRedirectClient(p.client), p.Type(), p.settings.Endpoint, p.auth, p.headers, probe)
	return status, err
}
