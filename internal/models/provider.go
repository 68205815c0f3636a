package models

import (
	"fmt"
	"net/url"
)

// ProviderType enumerates supported provider types.
type ProviderType string

const (
	// ProviderTypeOpenAI is the chat-completions API (message array with an embedded system entry).
	ProviderTypeOpenAI ProviderType = "openai"
	// ProviderTypeAnthropic is the Messages API (separate system field).
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// ProviderTypes lists the recognized provider identifiers in display order.
func ProviderTypes() []ProviderType {
	return []ProviderType{ProviderTypeOpenAI, ProviderTypeAnthropic}
}

// Valid reports whether p is a recognized provider identifier.
func (p ProviderType) Valid() bool {
	switch p {
	case ProviderTypeOpenAI, ProviderTypeAnthropic:
		return true
	}
	return false
}

func (p ProviderType) String() string {
	return string(p)
}

// ProviderSettings holds the connection settings for one provider.
type ProviderSettings struct {
	Endpoint    string  `json:"endpoint"`
	Credential  string  `json:"-"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// HasCredential reports whether a credential is configured.
func (s ProviderSettings) HasCredential() bool {
	return s.Credential != ""
}

// Validate checks endpoint, temperature and token limit ranges.
func (s ProviderSettings) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", s.Endpoint)
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0,2]", s.Temperature)
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", s.MaxTokens)
	}
	return nil
}
