// Package session keeps one transcript per chat session in a bounded TTL cache
// and runs messages through the resolver.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"travelmate/internal/logging"
	"travelmate/internal/models"
	"travelmate/internal/resolver"
	"travelmate/internal/storage"
	"travelmate/internal/utils"
)

// ErrEmptyMessage is returned for blank user input
var ErrEmptyMessage = errors.New("message must not be empty")

const (
	DefaultCapacity = 10000
	DefaultTTL      = 2 * time.Hour

	DefaultCleanupInterval = 5 * time.Minute
)

// Store holds transcripts by session id. Idle sessions expire after the TTL.
type Store struct {
	cache *storage.LRUCache[*models.Transcript]
}

// NewStore creates a store. Non-positive values use the defaults.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: storage.NewLRUCache[*models.Transcript](capacity, ttl)}
}

// Transcript returns the transcript for id, creating it when missing.
// The boolean is true for a new session.
func (s *Store) Transcript(id string) (*models.Transcript, bool) {
	return s.cache.GetOrCreate(id, models.NewTranscript)
}

// Delete drops a session
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	return s.cache.Len()
}

// Stats returns cache statistics
func (s *Store) Stats() storage.CacheStats {
	return s.cache.GetStats()
}

// RunJanitor removes expired sessions every interval until ctx is done.
// A non-positive interval uses DefaultCleanupInterval.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	logger := utils.NewLogger("session-janitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cache.CleanupExpired(); n > 0 {
				logger.Debug("Expired sessions removed", "count", n, "live", s.cache.Len())
			}
		}
	}
}

// Service is the chat flow shared by the HTTP, websocket and terminal front ends
type Service struct {
	store    *Store
	resolver *resolver.Resolver
}

func NewService(store *Store, r *resolver.Resolver) *Service {
	return &Service{store: store, resolver: r}
}

// Greeting is the first assistant message shown in a new session
func (s *Service) Greeting() string {
	return s.resolver.Table().Greeting()
}

// History returns a copy of the session's turns
func (s *Service) History(id string) []models.Turn {
	tr, _ := s.store.Transcript(id)
	return tr.Turns()
}

// Send resolves message against the session history, then appends the user
// turn and the reply.
func (s *Service) Send(ctx context.Context, id, message string) (resolver.Resolution, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return resolver.Resolution{}, ErrEmptyMessage
	}

	tr, _ := s.store.Transcript(id)
	ctx = logging.WithSessionID(ctx, id)

	res := s.resolver.ResolveDetailed(ctx, message, tr.Turns())
	tr.Append(
		models.Turn{Role: models.RoleUser, Content: message},
		models.Turn{Role: models.RoleAssistant, Content: res.Text},
	)
	return res, nil
}

// Clear empties the session transcript and returns the confirmation message
func (s *Service) Clear(id string) string {
	tr, _ := s.store.Transcript(id)
	tr.Clear()
	return s.resolver.Table().Cleared()
}
