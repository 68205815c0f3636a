package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"travelmate/internal/logging"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// SessionIDKey is the context key for the chat session id
	SessionIDKey ContextKey = "sessionID"

	// SessionCookieName names the cookie that carries the chat session id
	SessionCookieName = "travelmate_session"

	// RequestIDHeader is echoed back on every response
	RequestIDHeader = "X-Request-ID"
)

// SessionMiddleware assigns every browser a chat session id kept in a cookie.
// Missing or malformed cookies get a fresh uuid.
func SessionMiddleware(maxAge time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			// Refresh on every request so the cookie outlives an active session
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), SessionIDKey, id)
			ctx = logging.WithSessionID(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionID retrieves the session id from the request context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}
