package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/httpapi"
	"travelmate/internal/keywords"
	"travelmate/internal/logging"
	"travelmate/internal/models"
	"travelmate/internal/resolver"
	"travelmate/internal/session"
	"travelmate/internal/settings"
	"travelmate/internal/storage"
)

type fakeBackend struct {
	sent    []string
	reply   Reply
	err     error
	cleared int
}

func (f *fakeBackend) Greeting() string { return "Hi! I'm TravelMate." }

func (f *fakeBackend) Send(ctx context.Context, message string) (Reply, error) {
	f.sent = append(f.sent, message)
	return f.reply, f.err
}

func (f *fakeBackend) Clear(ctx context.Context) (string, error) {
	f.cleared++
	return "Chat cleared!", nil
}

func (f *fakeBackend) Close() error { return nil }

func newTestModel(backend Backend, open bool) *Model {
	m := New(context.Background(), backend, Options{GlamourStyle: "notty", StartOpen: open})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return m
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func TestModel_LauncherToggle(t *testing.T) {
	m := newTestModel(&fakeBackend{}, false)
	assert.False(t, m.IsOpen())
	assert.Contains(t, m.View(), "ctrl+t")

	m.Update(key(tea.KeyCtrlT))
	assert.True(t, m.IsOpen())
	assert.Contains(t, m.View(), "Hi! I'm TravelMate.")

	m.Update(key(tea.KeyCtrlT))
	assert.False(t, m.IsOpen())

	m.Update(key(tea.KeyEnter))
	assert.True(t, m.IsOpen())

	m.Update(key(tea.KeyEsc))
	assert.False(t, m.IsOpen())
}

func TestModel_OutsideClickCloses(t *testing.T) {
	m := newTestModel(&fakeBackend{}, true)

	m.Update(tea.MouseMsg{X: 5, Y: 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.True(t, m.IsOpen(), "click inside the panel keeps it open")

	m.Update(tea.MouseMsg{X: 5, Y: m.panelHeight() + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.False(t, m.IsOpen())
}

func TestModel_SendAndReply(t *testing.T) {
	backend := &fakeBackend{reply: Reply{Text: "Visit Gardens by the Bay.", Source: logging.SourceLocal}}
	m := newTestModel(backend, true)

	typeText(m, "  any parks?  ")
	_, cmd := m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())

	msg := m.sendCmd("any parks?")()
	m.Update(msg)
	assert.False(t, m.waiting)
	assert.Equal(t, []string{"any parks?"}, backend.sent)

	assert.Equal(t, []models.Turn{
		{Role: models.RoleAssistant, Content: "Hi! I'm TravelMate."},
		{Role: models.RoleUser, Content: "any parks?"},
		{Role: models.RoleAssistant, Content: "Visit Gardens by the Bay."},
	}, m.Transcript())
	assert.Contains(t, m.View(), "Gardens")
}

func TestModel_IgnoresBlankAndConcurrentInput(t *testing.T) {
	m := newTestModel(&fakeBackend{}, true)

	typeText(m, "   ")
	_, cmd := m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)

	typeText(m, "first")
	m.Update(key(tea.KeyEnter))
	require.True(t, m.waiting)

	typeText(m, "second")
	_, cmd = m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Len(t, m.Transcript(), 2)
}

func TestModel_ErrorReply(t *testing.T) {
	m := newTestModel(&fakeBackend{}, true)
	m.Update(replyMsg{err: errors.New("connection lost")})

	assert.Contains(t, m.View(), "connection lost")
}

func TestModel_Clear(t *testing.T) {
	backend := &fakeBackend{reply: Reply{Text: "ok"}}
	m := newTestModel(backend, true)
	m.entries = append(m.entries, entry{role: models.RoleUser, text: "hello"})

	typeText(m, "/clear")
	_, cmd := m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Empty(t, backend.sent)

	m.Update(m.clearCmd()())
	assert.Equal(t, 1, backend.cleared)
	assert.Equal(t, []models.Turn{{Role: models.RoleAssistant, Content: "Chat cleared!"}}, m.Transcript())
}

func newLocalService(t *testing.T) *session.Service {
	t.Helper()
	conf, err := settings.New(context.Background(), storage.NewMemoryStore(), settings.BuiltinDefaults())
	require.NoError(t, err)
	return session.NewService(session.NewStore(10, time.Hour), resolver.New(conf, keywords.Default()))
}

func TestLocalBackend(t *testing.T) {
	svc := newLocalService(t)
	b := NewLocalBackend(svc)
	table := keywords.Default()

	assert.Equal(t, table.Greeting(), b.Greeting())

	reply, err := b.Send(context.Background(), "cheap eats near the hawker centre")
	require.NoError(t, err)
	assert.Equal(t, table.Reply("cheap eats near the hawker centre"), reply.Text)
	assert.Len(t, svc.History(b.sessionID), 2)

	_, err = b.Send(context.Background(), " ")
	assert.ErrorIs(t, err, session.ErrEmptyMessage)

	cleared, err := b.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, table.Cleared(), cleared)
	assert.Empty(t, svc.History(b.sessionID))
}

func TestRemoteBackend(t *testing.T) {
	svc := newLocalService(t)
	sessions := session.NewStore(10, time.Hour)
	conf, err := settings.New(context.Background(), storage.NewMemoryStore(), settings.BuiltinDefaults())
	require.NoError(t, err)
	deps := &httpapi.Dependencies{
		Settings: conf,
		Chat:     session.NewService(sessions, resolver.New(conf, keywords.Default())),
		Sessions: sessions,
		Audit:    logging.NewNoopSink(),
		Store:    storage.NewMemoryStore(),
	}
	srv := httptest.NewServer(deps.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := DialRemote(ctx, srv.URL, nil)
	require.NoError(t, err)
	defer b.Close()

	table := keywords.Default()
	assert.Equal(t, svc.Greeting(), b.Greeting())

	reply, err := b.Send(ctx, "best beach?")
	require.NoError(t, err)
	assert.Equal(t, table.Reply("best beach?"), reply.Text)
	assert.Equal(t, logging.SourceLocal, reply.Source)

	_, err = b.Send(ctx, "")
	assert.EqualError(t, err, "Message must not be empty")

	cleared, err := b.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, table.Cleared(), cleared)
}

func TestDialRemote_RejectsMissingGreeting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		wsjson.Write(r.Context(), c, models.Frame{Type: models.FrameReply, Content: "surprise"})
		c.Read(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := DialRemote(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected first frame")
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/chat/ws"},
		{"https://chat.example/", "wss://chat.example/api/chat/ws"},
		{"ws://host/api/chat/ws", "ws://host/api/chat/ws"},
		{"https://example.com/travel", "wss://example.com/travel/api/chat/ws"},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := websocketURL("ftp://host")
	assert.Error(t, err)
	_, err = websocketURL("::bad")
	assert.True(t, err != nil && strings.Contains(err.Error(), "invalid server url"))
}
