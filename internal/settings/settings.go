// Package settings holds the process-wide chat assistant configuration:
// whether hosted AI is enabled, which provider is active, and the
// per-provider connection settings. Every mutation is persisted to a
// storage.KVStore before it returns.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"travelmate/internal/logging"
	"travelmate/internal/models"
	"travelmate/internal/providers"
	"travelmate/internal/storage"
)

// Durable storage keys
const (
	KeyCredential = "travelmate_ai_apikey"
	KeyProvider   = "travelmate_ai_provider"
	KeyEnabled    = "travelmate_ai_enabled"
)

// sealedPrefix marks credentials written through a Sealer
const sealedPrefix = "sealed:v1:"

var (
	// ErrEmptyCredential is returned by SetCredential for an empty key
	ErrEmptyCredential = errors.New("credential must not be empty")

	// ErrUnknownProvider is returned for provider identifiers other than openai and anthropic
	ErrUnknownProvider = errors.New("unknown provider")
)

// Sealer encrypts credentials at rest. *storage.Encryption implements it.
type Sealer interface {
	Seal(value string) (string, error)
	Open(sealed string) (string, error)
}

// Defaults is the configuration used for anything the store does not hold
type Defaults struct {
	Enabled      bool
	Provider     models.ProviderType
	SystemPrompt string
	Providers    map[models.ProviderType]models.ProviderSettings
}

// Snapshot is an immutable copy of the state needed to build one request
type Snapshot struct {
	Enabled      bool
	Provider     models.ProviderType
	SystemPrompt string
	Settings     models.ProviderSettings
	// Known is false when the active provider id is not recognized
	Known bool
}

// Config is the chat assistant configuration. It is safe for concurrent use.
type Config struct {
	mu sync.RWMutex

	store  storage.KVStore
	sealer Sealer
	client *http.Client

	enabled      bool
	active       models.ProviderType
	systemPrompt string
	providers    map[models.ProviderType]models.ProviderSettings
	defaults     map[models.ProviderType]models.ProviderSettings
}

// Option configures a Config
type Option func(*Config)

// WithSealer encrypts stored credentials
func WithSealer(s Sealer) Option {
	return func(c *Config) { c.sealer = s }
}

// WithHTTPClient sets the client used by TestConnection
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.client = client }
}

// New creates a Config seeded from defaults and overlaid with the persisted state.
func New(ctx context.Context, store storage.KVStore, defaults Defaults, opts ...Option) (*Config, error) {
	if store == nil {
		return nil, fmt.Errorf("settings store is required")
	}

	c := &Config{
		store:        store,
		enabled:      defaults.Enabled,
		active:       defaults.Provider,
		systemPrompt: defaults.SystemPrompt,
		providers:    make(map[models.ProviderType]models.ProviderSettings, len(defaults.Providers)),
		defaults:     make(map[models.ProviderType]models.ProviderSettings, len(defaults.Providers)),
	}
	for p, s := range defaults.Providers {
		c.providers[p] = s
		c.defaults[p] = s
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = providers.NewHTTPClient(providers.DefaultRequestTimeout)
	}

	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) load(ctx context.Context) error {
	provider, err := c.get(ctx, KeyProvider)
	if err != nil {
		return err
	}
	if provider != "" {
		// Kept verbatim; an unrecognized id makes Current report false
		c.active = models.ProviderType(provider)
	}

	enabled, err := c.get(ctx, KeyEnabled)
	if err != nil {
		return err
	}
	if enabled != "" {
		var v bool
		if err := json.Unmarshal([]byte(enabled), &v); err != nil {
			logging.Warningf("settings: ignoring unreadable %s value %q: %v", KeyEnabled, enabled, err)
		} else {
			c.enabled = v
		}
	}

	stored, err := c.get(ctx, KeyCredential)
	if err != nil {
		return err
	}
	if stored != "" {
		credential, err := c.unseal(stored)
		if err != nil {
			logging.Errorf("settings: stored credential could not be read, ignoring it: %v", err)
		} else if s, ok := c.providers[c.active]; ok {
			s.Credential = credential
			c.providers[c.active] = s
		}
	}

	logging.Infof("settings: loaded provider=%s enabled=%t hasCredential=%t",
		c.active, c.enabled, c.providers[c.active].HasCredential())
	return nil
}

func (c *Config) get(ctx context.Context, key string) (string, error) {
	v, err := c.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v, nil
}

func (c *Config) seal(credential string) (string, error) {
	if c.sealer == nil {
		return credential, nil
	}
	sealed, err := c.sealer.Seal(credential)
	if err != nil {
		return "", fmt.Errorf("failed to seal credential: %w", err)
	}
	return sealedPrefix + sealed, nil
}

func (c *Config) unseal(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if c.sealer == nil {
		return "", fmt.Errorf("credential is sealed but no encryption key is configured")
	}
	return c.sealer.Open(strings.TrimPrefix(stored, sealedPrefix))
}

// SetCredential persists key as the credential of provider and makes provider active.
// An empty provider means the currently active one.
func (c *Config) SetCredential(ctx context.Context, key string, provider models.ProviderType) error {
	if key == "" {
		return ErrEmptyCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if provider == "" {
		provider = c.active
	}
	if !provider.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	sealed, err := c.seal(key)
	if err != nil {
		return err
	}
	previous, err := c.get(ctx, KeyCredential)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, KeyCredential, sealed); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	if err := c.store.Set(ctx, KeyProvider, string(provider)); err != nil {
		// The stored credential must keep belonging to the stored provider
		if rerr := c.restoreCredential(ctx, previous); rerr != nil {
			logging.Errorf("settings: could not roll back %s: %v", KeyCredential, rerr)
			err = errors.Join(err, rerr)
		}
		return fmt.Errorf("failed to persist provider: %w", err)
	}

	// The single stored key belongs to provider; the others revert to their defaults
	for p, s := range c.providers {
		s.Credential = c.defaults[p].Credential
		c.providers[p] = s
	}
	s := c.providers[provider]
	s.Credential = key
	c.providers[provider] = s
	c.active = provider

	logging.Infof("settings: credential updated for provider=%s", provider)
	return nil
}

func (c *Config) restoreCredential(ctx context.Context, previous string) error {
	if previous == "" {
		return c.store.Delete(ctx, KeyCredential)
	}
	return c.store.Set(ctx, KeyCredential, previous)
}

// SetEnabled turns the hosted AI path on or off
func (c *Config) SetEnabled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, _ := json.Marshal(enabled)
	if err := c.store.Set(ctx, KeyEnabled, string(b)); err != nil {
		return fmt.Errorf("failed to persist enabled flag: %w", err)
	}
	c.enabled = enabled

	logging.Infof("settings: external AI enabled=%t", enabled)
	return nil
}

// SetActiveProvider switches the active provider. It returns false without
// touching the store when id is not a recognized provider.
func (c *Config) SetActiveProvider(ctx context.Context, id string) (bool, error) {
	provider := models.ProviderType(id)
	if !provider.Valid() {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(ctx, KeyProvider, id); err != nil {
		return false, fmt.Errorf("failed to persist provider: %w", err)
	}
	c.active = provider
	return true, nil
}

// Current returns the settings of the active provider. The boolean is false
// when the active provider id is not recognized.
func (c *Config) Current() (models.ProviderSettings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.active.Valid() {
		return models.ProviderSettings{}, false
	}
	s, ok := c.providers[c.active]
	return s, ok
}

// Settings returns the settings of a specific provider
func (c *Config) Settings(provider models.ProviderType) (models.ProviderSettings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[provider]
	return s, ok
}

// Enabled reports whether the hosted AI path is on
func (c *Config) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// ActiveProvider returns the active provider id, which may be unrecognized
func (c *Config) ActiveProvider() models.ProviderType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Snapshot returns a consistent copy of the state for request building
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[c.active]
	return Snapshot{
		Enabled:      c.enabled,
		Provider:     c.active,
		SystemPrompt: c.systemPrompt,
		Settings:     s,
		Known:        ok && c.active.Valid(),
	}
}

// TestConnection sends a minimal probe to provider using credential and reports
// transport-level success (2xx or 3xx). An empty credential uses the configured one.
func (c *Config) TestConnection(ctx context.Context, provider models.ProviderType, credential string) bool {
	s, ok := c.Settings(provider)
	if !ok || !provider.Valid() {
		logging.Warningf("settings: connection test for unknown provider %q", provider)
		return false
	}
	if credential != "" {
		s.Credential = credential
	}

	ok, err := providers.Probe(ctx, c.client, provider, s)
	if err != nil {
		logging.Warningf("settings: connection test failed for provider=%s: %v", provider, err)
		return false
	}
	if !ok {
		logging.Warningf("settings: connection test for provider=%s was rejected", provider)
	}
	return ok
}
