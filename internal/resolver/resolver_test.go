package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/keywords"
	"travelmate/internal/logging"
	"travelmate/internal/models"
	"travelmate/internal/providers"
	"travelmate/internal/settings"
	"travelmate/internal/storage"
)

type staticSettings settings.Snapshot

func (s staticSettings) Snapshot() settings.Snapshot { return settings.Snapshot(s) }

type captureSink struct {
	mu      sync.Mutex
	records []*logging.ResolutionRecord
}

func (s *captureSink) Enqueue(rec *logging.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) Shutdown(ctx context.Context) error { return nil }

// fakeProvider serves one canned response and records every request body
type fakeProvider struct {
	*httptest.Server
	calls  atomic.Int32
	mu     sync.Mutex
	bodies []map[string]any
	header http.Header
}

func newFakeProvider(t *testing.T, status int, response any) *fakeProvider {
	t.Helper()

	f := &fakeProvider{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.header = r.Header.Clone()
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeProvider) lastBody(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.bodies)
	return f.bodies[len(f.bodies)-1]
}

func openAIReply(text string) map[string]any {
	return map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
	}
}

func anthropicReply(text string) map[string]any {
	return map[string]any{
		"content": []any{map[string]any{"type": "text", "text": text}},
	}
}

func snapshot(provider models.ProviderType, endpoint string) staticSettings {
	return staticSettings{
		Enabled:      true,
		Provider:     provider,
		SystemPrompt: "You are TravelMate.",
		Settings: models.ProviderSettings{
			Endpoint:    endpoint,
			Credential:  "sk-test",
			Model:       "test-model",
			Temperature: 0.7,
			MaxTokens:   150,
		},
		Known: true,
	}
}

func transcriptOf(n int) []models.Turn {
	turns := make([]models.Turn, n)
	for i := range turns {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		turns[i] = models.Turn{Role: role, Content: fmt.Sprintf("turn-%d", i)}
	}
	return turns
}

func TestResolve_DisabledMakesNoHTTPCall(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("remote"))
	snap := snapshot(models.ProviderTypeOpenAI, f.URL)
	snap.Enabled = false

	r := New(snap, keywords.Default())
	table := keywords.Default()

	reply := r.Resolve(context.Background(), "any parks nearby?", nil)

	assert.Equal(t, table.Reply("any parks nearby?"), reply)
	assert.Zero(t, f.calls.Load())
}

func TestResolve_RemoteSuccess(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("  Try Haw Par Villa.  "))
	sink := &captureSink{}

	r := New(snapshot(models.ProviderTypeOpenAI, f.URL), keywords.Default(), WithSink(sink))
	res := r.ResolveDetailed(context.Background(), "hidden gems?", nil)

	assert.Equal(t, "Try Haw Par Villa.", res.Text)
	assert.Equal(t, logging.SourceRemote, res.Source)
	assert.NoError(t, res.Err)
	assert.Equal(t, int32(1), f.calls.Load())

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, logging.SourceRemote, rec.Source)
	assert.Equal(t, "openai", rec.Provider)
	assert.Equal(t, "test-model", rec.Model)
	assert.Equal(t, len("hidden gems?"), rec.MessageChars)
	assert.Empty(t, rec.Error)
}

func TestResolve_FallsBackOnProviderFailure(t *testing.T) {
	table := keywords.Default()

	tests := []struct {
		name     string
		status   int
		response any
		message  string
		source   string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unauthorized with keyword match",
			status:   http.StatusUnauthorized,
			response: map[string]any{"error": map[string]any{"message": "Invalid API key"}},
			message:  "where is the beach?",
			source:   logging.SourceLocal,
			check: func(t *testing.T, err error) {
				var perr *providers.ProviderError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
				assert.Equal(t, "Invalid API key", perr.Message)
			},
		},
		{
			name:     "server error without keyword match",
			status:   http.StatusInternalServerError,
			response: map[string]any{},
			message:  "asdkqwe",
			source:   logging.SourceDefault,
			check: func(t *testing.T, err error) {
				var perr *providers.ProviderError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "Unknown error", perr.Message)
			},
		},
		{
			name:     "blank reply",
			status:   http.StatusOK,
			response: openAIReply("   "),
			message:  "cheap eats?",
			source:   logging.SourceLocal,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyReply)
			},
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			response: map[string]any{"choices": []any{}},
			message:  "movie tonight",
			source:   logging.SourceLocal,
			check: func(t *testing.T, err error) {
				var perr *providers.ProviderError
				assert.ErrorAs(t, err, &perr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeProvider(t, tt.status, tt.response)
			sink := &captureSink{}
			r := New(snapshot(models.ProviderTypeOpenAI, f.URL), table, WithSink(sink))

			res := r.ResolveDetailed(context.Background(), tt.message, nil)

			assert.NotEmpty(t, res.Text)
			assert.Equal(t, table.Reply(tt.message), res.Text)
			assert.Equal(t, tt.source, res.Source)
			tt.check(t, res.Err)

			require.Len(t, sink.records, 1)
			assert.NotEmpty(t, sink.records[0].Error)
		})
	}
}

func TestResolve_DefaultResponseForUnknownInput(t *testing.T) {
	table := keywords.Default()
	snap := snapshot(models.ProviderTypeOpenAI, "http://unused.invalid")
	snap.Enabled = false

	res := New(snap, table).ResolveDetailed(context.Background(), "asdkqwe", nil)

	assert.Equal(t, table.DefaultResponse(), res.Text)
	assert.Equal(t, logging.SourceDefault, res.Source)
	assert.NoError(t, res.Err)
}

func TestResolve_MissingCredentialSkipsNetwork(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("remote"))
	snap := snapshot(models.ProviderTypeOpenAI, f.URL)
	snap.Settings.Credential = ""

	res := New(snap, keywords.Default()).ResolveDetailed(context.Background(), "shopping?", nil)

	assert.ErrorIs(t, res.Err, providers.ErrMissingCredential)
	assert.Equal(t, logging.SourceLocal, res.Source)
	assert.Zero(t, f.calls.Load())
}

func TestResolve_UnknownActiveProvider(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("remote"))
	snap := snapshot("gemini", f.URL)
	snap.Known = false

	res := New(snap, keywords.Default()).ResolveDetailed(context.Background(), "asdkqwe", nil)

	assert.ErrorIs(t, res.Err, providers.ErrUnknownProvider)
	assert.Equal(t, logging.SourceDefault, res.Source)
	assert.Zero(t, f.calls.Load())
}

func TestResolve_TransportError(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("remote"))
	url := f.URL
	f.Close()

	res := New(snapshot(models.ProviderTypeAnthropic, url), keywords.Default()).
		ResolveDetailed(context.Background(), "nightlife?", nil)

	var terr *providers.TransportError
	assert.ErrorAs(t, res.Err, &terr)
	assert.Equal(t, keywords.Default().Reply("nightlife?"), res.Text)
}

func TestResolve_CancelledContextFallsBack(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("remote"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(snapshot(models.ProviderTypeOpenAI, f.URL), keywords.Default()).ResolveDetailed(ctx, "park", nil)

	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Equal(t, logging.SourceLocal, res.Source)
}

func TestResolve_OpenAIEnvelopeCarriesLastFiveTurns(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("ok"))
	r := New(snapshot(models.ProviderTypeOpenAI, f.URL), keywords.Default())

	history := transcriptOf(8)
	r.Resolve(context.Background(), "what now?", history)

	body := f.lastBody(t)
	assert.Equal(t, "test-model", body["model"])
	assert.Equal(t, 0.7, body["temperature"])
	assert.Equal(t, float64(150), body["max_tokens"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 7)

	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are TravelMate.", first["content"])

	for i := 0; i < 5; i++ {
		m := messages[i+1].(map[string]any)
		assert.Equal(t, history[i+3].Content, m["content"])
		assert.Equal(t, string(history[i+3].Role), m["role"])
	}

	last := messages[6].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "what now?", last["content"])
	assert.Equal(t, "Bearer sk-test", f.header.Get("Authorization"))
}

func TestResolve_AnthropicEnvelope(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, anthropicReply("Visit Pulau Ubin."))
	r := New(snapshot(models.ProviderTypeAnthropic, f.URL), keywords.Default())

	history := transcriptOf(8)
	reply := r.Resolve(context.Background(), "day trip?", history)
	assert.Equal(t, "Visit Pulau Ubin.", reply)

	body := f.lastBody(t)
	assert.Equal(t, "You are TravelMate.", body["system"])
	assert.NotContains(t, body, "temperature")

	messages := body["messages"].([]any)
	require.Len(t, messages, 6)
	assert.Equal(t, "turn-3", messages[0].(map[string]any)["content"])
	last := messages[5].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "day trip?", last["content"])

	assert.Equal(t, "sk-test", f.header.Get("x-api-key"))
	assert.Equal(t, providers.AnthropicVersion, f.header.Get("anthropic-version"))
}

func TestResolve_HistoryWindowOption(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("ok"))
	r := New(snapshot(models.ProviderTypeOpenAI, f.URL), keywords.Default(), WithHistoryWindow(0))

	r.Resolve(context.Background(), "hi", transcriptOf(4))

	messages := f.lastBody(t)["messages"].([]any)
	assert.Len(t, messages, 2)
}

func TestResolve_DoesNotMutateHistory(t *testing.T) {
	f := newFakeProvider(t, http.StatusOK, openAIReply("ok"))
	r := New(snapshot(models.ProviderTypeOpenAI, f.URL), keywords.Default())

	history := transcriptOf(3)
	before := append([]models.Turn(nil), history...)
	r.Resolve(context.Background(), "hi", history)

	assert.Equal(t, before, history)
}

func TestResolve_WithPersistedSettings(t *testing.T) {
	ctx := context.Background()
	f := newFakeProvider(t, http.StatusOK, anthropicReply("From the store."))

	defaults := settings.BuiltinDefaults()
	anthropic := defaults.Providers[models.ProviderTypeAnthropic]
	anthropic.Endpoint = f.URL
	defaults.Providers[models.ProviderTypeAnthropic] = anthropic

	cfg, err := settings.New(ctx, storage.NewMemoryStore(), defaults)
	require.NoError(t, err)

	r := New(cfg, keywords.Default(), WithHTTPClient(f.Client()))
	assert.Equal(t, keywords.Default().Reply("beach"), r.Resolve(ctx, "beach", nil))

	require.NoError(t, cfg.SetCredential(ctx, "sk-ant", models.ProviderTypeAnthropic))
	require.NoError(t, cfg.SetEnabled(ctx, true))

	assert.Equal(t, "From the store.", r.Resolve(ctx, "beach", nil))
	assert.Equal(t, "sk-ant", f.header.Get("x-api-key"))
}

func TestResolve_AuditIDsFromContext(t *testing.T) {
	sink := &captureSink{}
	snap := snapshot(models.ProviderTypeOpenAI, "http://unused.invalid")
	snap.Enabled = false

	ctx := logging.WithSessionID(logging.WithRequestID(context.Background(), "req-9"), "sess-9")
	New(snap, keywords.Default(), WithSink(sink)).Resolve(ctx, "mall", transcriptOf(2))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "req-9", rec.RequestID)
	assert.Equal(t, "sess-9", rec.SessionID)
	assert.Equal(t, "shopping", rec.Category)
	assert.Equal(t, 2, rec.HistoryTurns)
	assert.Empty(t, rec.Provider)
	assert.False(t, rec.Enabled)
}
