// Package resolver turns a user message into a reply. It asks the active
// hosted provider when AI is enabled and falls back to the keyword table on
// any failure, so a caller always gets text back.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"travelmate/internal/keywords"
	"travelmate/internal/logging"
	"travelmate/internal/models"
	"travelmate/internal/providers"
	"travelmate/internal/settings"
)

// DefaultHistoryWindow is the number of prior turns sent to a provider
const DefaultHistoryWindow = 5

// ErrEmptyReply is recorded when a provider answers with blank text
var ErrEmptyReply = errors.New("provider returned an empty reply")

// SettingsSource provides a consistent view of the provider configuration
type SettingsSource interface {
	Snapshot() settings.Snapshot
}

// Resolution is the detailed outcome of one resolve call
type Resolution struct {
	Text     string
	Source   string // logging.SourceRemote, SourceLocal or SourceDefault
	Provider models.ProviderType
	Category string
	// Err is the reason the remote path was not used; nil for remote replies
	// and when AI is disabled.
	Err error
}

// Resolver answers chat messages
type Resolver struct {
	settings SettingsSource
	table    *keywords.Table
	client   *http.Client
	sink     logging.Sink
	window   int
	now      func() time.Time
}

// Option configures a Resolver
type Option func(*Resolver)

// WithHTTPClient sets the client used for provider calls
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) { r.client = client }
}

// WithSink sets the audit sink
func WithSink(sink logging.Sink) Option {
	return func(r *Resolver) { r.sink = sink }
}

// WithHistoryWindow sets how many prior turns are forwarded to a provider
func WithHistoryWindow(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.window = n
		}
	}
}

// New creates a resolver over a settings source and a keyword table
func New(source SettingsSource, table *keywords.Table, opts ...Option) *Resolver {
	r := &Resolver{
		settings: source,
		table:    table,
		sink:     logging.NewNoopSink(),
		window:   DefaultHistoryWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = providers.NewHTTPClient(providers.DefaultRequestTimeout)
	}
	return r
}

// Table returns the keyword table used for fallback answers
func (r *Resolver) Table() *keywords.Table {
	return r.table
}

// Resolve returns the reply text for message given the prior transcript.
// It never fails: provider errors fall back to the keyword table.
func (r *Resolver) Resolve(ctx context.Context, message string, history []models.Turn) string {
	return r.ResolveDetailed(ctx, message, history).Text
}

// ResolveDetailed is Resolve with the source of the reply and the fallback cause
func (r *Resolver) ResolveDetailed(ctx context.Context, message string, history []models.Turn) Resolution {
	start := r.now()
	snap := r.settings.Snapshot()
	window := models.LastTurns(history, r.window)

	var res Resolution
	if snap.Enabled {
		text, err := r.remote(ctx, snap, message, window)
		if err == nil {
			res = Resolution{Text: text, Source: logging.SourceRemote, Provider: snap.Provider}
		} else {
			logging.Warningf("resolver: provider %s failed, using keyword fallback: %v", snap.Provider, err)
			res = r.local(message)
			res.Provider = snap.Provider
			res.Err = err
		}
	} else {
		res = r.local(message)
	}

	r.audit(ctx, snap, res, message, len(window), start)
	return res
}

func (r *Resolver) remote(ctx context.Context, snap settings.Snapshot, message string, history []models.Turn) (string, error) {
	if !snap.Known {
		return "", fmt.Errorf("%w: %q", providers.ErrUnknownProvider, snap.Provider)
	}

	p, err := providers.New(snap.Provider, snap.Settings, r.client)
	if err != nil {
		return "", err
	}

	text, err := p.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: snap.SystemPrompt,
		History:      history,
		Message:      message,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func (r *Resolver) local(message string) Resolution {
	if c, ok := r.table.MatchCategory(message); ok {
		return Resolution{Text: c.Response, Source: logging.SourceLocal, Category: c.ID}
	}
	return Resolution{Text: r.table.DefaultResponse(), Source: logging.SourceDefault}
}

func (r *Resolver) audit(ctx context.Context, snap settings.Snapshot, res Resolution, message string, turns int, start time.Time) {
	rec := &logging.ResolutionRecord{
		Timestamp:    start.UTC(),
		RequestID:    logging.RequestID(ctx),
		SessionID:    logging.SessionID(ctx),
		Enabled:      snap.Enabled,
		Source:       res.Source,
		Category:     res.Category,
		MessageChars: len([]rune(message)),
		ReplyChars:   len([]rune(res.Text)),
		HistoryTurns: turns,
		LatencyMs:    r.now().Sub(start).Milliseconds(),
	}
	if snap.Enabled {
		rec.Provider = string(snap.Provider)
		rec.Model = snap.Settings.Model
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := r.sink.Enqueue(rec); err != nil {
		logging.Debugf("resolver: dropped audit record %s: %v", rec.RequestID, err)
	}
}
