// Package widget bootstraps the hosted chat widget. A Loader fetches the
// widget configuration document with retries; Modal tracks whether the chat
// window is open.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"travelmate/internal/utils"
)

var (
	// ErrLoadInProgress is returned when Load is called while another Load runs
	ErrLoadInProgress = errors.New("widget load already in progress")

	// ErrLoadFailed is returned when every attempt failed
	ErrLoadFailed = errors.New("widget load failed")
)

const maxConfigBytes = 1 << 20

// State of a Loader
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateUnloaded, StateLoading, StateReady, StateFailed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown widget state %q", b)
}

// RetryPolicy controls how often and how fast a Loader retries
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns 5 attempts starting at 500ms, doubling up to 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
	}
}

// Backoff returns the wait after the given failed attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// Fetcher retrieves the widget configuration document
type Fetcher interface {
	Fetch(ctx context.Context) (json.RawMessage, error)
}

// HTTPFetcher downloads a JSON configuration document
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// Fetch GETs the document and checks it is a JSON object
func (f *HTTPFetcher) Fetch(ctx context.Context) (json.RawMessage, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch widget config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("widget config returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read widget config: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("widget config is not a JSON object: %w", err)
	}
	return json.RawMessage(body), nil
}

// Status is a snapshot of a Loader
type Status struct {
	State     State           `json:"state"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
	ShareURL  string          `json:"share_url,omitempty"`
	LoadedAt  *time.Time      `json:"loaded_at,omitempty"`
}

// Loader moves through Unloaded -> Loading -> Ready | Failed.
// Ready is terminal; a Failed loader may Load again.
type Loader struct {
	fetcher  Fetcher
	policy   RetryPolicy
	shareURL string
	logger   *utils.Logger
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	state    State
	attempts int
	lastErr  error
	config   json.RawMessage
	loadedAt time.Time
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithShareURL sets the public chat link reported in Status
func WithShareURL(url string) LoaderOption {
	return func(l *Loader) { l.shareURL = url }
}

// NewLoader creates an unloaded Loader
func NewLoader(fetcher Fetcher, policy RetryPolicy, opts ...LoaderOption) *Loader {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	l := &Loader{
		fetcher: fetcher,
		policy:  policy,
		logger:  utils.NewLogger("widget-loader"),
		now:     time.Now,
		wait:    sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load fetches the configuration, retrying per the policy. Cancelling ctx
// stops the retries, leaves the loader Failed and returns ctx.Err().
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateLoading:
		l.mu.Unlock()
		return ErrLoadInProgress
	case StateReady:
		l.mu.Unlock()
		return nil
	}
	l.state = StateLoading
	l.attempts = 0
	l.lastErr = nil
	l.mu.Unlock()

	for attempt := 1; ; attempt++ {
		doc, err := l.fetcher.Fetch(ctx)

		l.mu.Lock()
		l.attempts = attempt
		if err == nil {
			l.state = StateReady
			l.config = doc
			l.loadedAt = l.now()
			l.mu.Unlock()
			l.logger.Info("Widget config loaded", "attempts", attempt, "bytes", len(doc))
			return nil
		}
		l.lastErr = err
		l.mu.Unlock()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return l.fail(ctxErr)
		}
		if attempt >= l.policy.MaxAttempts {
			l.logger.Error("Widget config load failed", "attempts", attempt, "error", err)
			return l.fail(fmt.Errorf("%w after %d attempts: %v", ErrLoadFailed, attempt, err))
		}

		backoff := l.policy.Backoff(attempt)
		l.logger.Warn("Widget config fetch failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if err := l.wait(ctx, backoff); err != nil {
			return l.fail(err)
		}
	}
}

func (l *Loader) fail(err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateFailed
	l.lastErr = err
	return err
}

// Status returns the current state
func (l *Loader) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Status{
		State:    l.state,
		Attempts: l.attempts,
		Config:   l.config,
		ShareURL: l.shareURL,
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	if l.state == StateReady {
		t := l.loadedAt
		st.LoadedAt = &t
	}
	return st
}

// Run loads in the background, starting over after a failure until ctx is done
// or the loader is Ready. retryEvery is the pause between failed Load calls.
func (l *Loader) Run(ctx context.Context, retryEvery time.Duration) {
	for {
		err := l.Load(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrLoadInProgress) {
			return
		}
		if l.wait(ctx, retryEvery) != nil {
			return
		}
	}
}
