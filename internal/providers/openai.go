package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"travelmate/internal/models"
	"travelmate/internal/utils"
)

// OpenAIProvider implements the Provider interface for the OpenAI chat completions API
type OpenAIProvider struct {
	settings models.ProviderSettings
	auth     Authenticator
	client   *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(settings models.ProviderSettings, client *http.Client) *OpenAIProvider {
	if client == nil {
		client = NewHTTPClient(DefaultRequestTimeout)
	}

	return &OpenAIProvider{
		settings: settings,
		auth:     NewSimpleAPIKeyAuth(settings.Credential, "Authorization", "Bearer "),
		client:   client,
	}
}

// Type returns the provider type
func (p *OpenAIProvider) Type() models.ProviderType {
	return models.ProviderTypeOpenAI
}

// buildRequest embeds the system prompt as the first message of the array
func (p *OpenAIProvider) buildRequest(req CompletionRequest) openAIRequest {
	messages := make([]openAIMessage, 0, len(req.History)+2)
	messages = append(messages, openAIMessage{Role: string(models.RoleSystem), Content: req.SystemPrompt})
	for _, turn := range req.History {
		messages = append(messages, openAIMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, openAIMessage{Role: string(models.RoleUser), Content: req.Message})

	return openAIRequest{
		Model:       p.settings.Model,
		Messages:    messages,
		Temperature: utils.Float64Ptr(p.settings.Temperature),
		MaxTokens:   p.settings.MaxTokens,
	}
}

// Complete sends a chat completion request to OpenAI
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	status, body, err := postJSON(ctx, p.client, p.Type(), p.settings.Endpoint, p.auth, nil, p.buildRequest(req))
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", errorFromResponse(p.Type(), status, body)
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ProviderError{Provider: p.Type(), StatusCode: status, Message: "malformed response body"}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", &ProviderError{Provider: p.Type(), StatusCode: status, Message: "response has no choices[0].message.content"}
	}

	return strings.TrimSpace(*resp.Choices[0].Message.Content), nil
}

// Probe sends the minimal connection test request
func (p *OpenAIProvider) Probe(ctx context.Context) (int, error) {
	probe := openAIRequest{
		Model:     p.settings.Model,
		Messages:  []openAIMessage{{Role: string(models.RoleUser), Content: probeMessage}},
		MaxTokens: probeMaxTokens,
	}

	status, _, err := postJSON(ctx, noRedirectClient(p.client), p.Type(), p.settings.Endpoint, p.auth, nil, probe)
	return status, err
}
