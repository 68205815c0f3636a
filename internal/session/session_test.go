package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/keywords"
	"travelmate/internal/logging"
	"travelmate/internal/models"
	"travelmate/internal/resolver"
	"travelmate/internal/settings"
	"travelmate/internal/storage"
)

type auditSink struct {
	mu       sync.Mutex
	sessions []string
}

func (s *auditSink) Enqueue(rec *logging.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, rec.SessionID)
	return nil
}

func (s *auditSink) Shutdown(ctx context.Context) error { return nil }

func newService(t *testing.T, opts ...resolver.Option) *Service {
	t.Helper()

	cfg, err := settings.New(context.Background(), storage.NewMemoryStore(), settings.BuiltinDefaults())
	require.NoError(t, err)

	return NewService(NewStore(10, time.Hour), resolver.New(cfg, keywords.Default(), opts...))
}

func TestStore_TranscriptCreatesOnce(t *testing.T) {
	s := NewStore(0, 0)

	tr, created := s.Transcript("a")
	require.True(t, created)
	tr.Append(models.Turn{Role: models.RoleUser, Content: "hi"})

	again, created := s.Transcript("a")
	assert.False(t, created)
	assert.Same(t, tr, again)
	assert.Equal(t, 1, s.Len())

	s.Delete("a")
	fresh, created := s.Transcript("a")
	assert.True(t, created)
	assert.Zero(t, fresh.Len())
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := NewStore(2, time.Hour)

	s.Transcript("a")
	s.Transcript("b")
	s.Transcript("a")
	s.Transcript("c")

	assert.Equal(t, 2, s.Len())
	_, created := s.Transcript("b")
	assert.True(t, created, "b should have been evicted")
}

func TestStore_RunJanitorStopsWithContext(t *testing.T) {
	s := NewStore(10, time.Millisecond)
	s.Transcript("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestService_SendAppendsTurns(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.Send(ctx, "s1", "  any parks?  ")
	require.NoError(t, err)
	assert.Equal(t, logging.SourceLocal, res.Source)

	history := svc.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, models.Turn{Role: models.RoleUser, Content: "any parks?"}, history[0])
	assert.Equal(t, models.Turn{Role: models.RoleAssistant, Content: res.Text}, history[1])

	assert.Empty(t, svc.History("s2"))
}

func TestService_SendRejectsBlankMessage(t *testing.T) {
	svc := newService(t)

	_, err := svc.Send(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, svc.History("s1"))
}

func TestService_ClearEmptiesTranscript(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, "s1", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}
	require.Len(t, svc.History("s1"), 6)

	assert.Equal(t, keywords.Default().Cleared(), svc.Clear("s1"))
	assert.Empty(t, svc.History("s1"))
	assert.Equal(t, keywords.Default().Greeting(), svc.Greeting())
}

func TestService_AuditCarriesSessionID(t *testing.T) {
	sink := &auditSink{}
	svc := newService(t, resolver.WithSink(sink))

	_, err := svc.Send(context.Background(), "sess-42", "beach")
	require.NoError(t, err)

	assert.Equal(t, []string{"sess-42"}, sink.sessions)
}
