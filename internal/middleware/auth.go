package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const SessionKey contextKey = "session"

// SessionHeader carries the workspace session id. Websocket clients, which
// cannot set headers, pass it as the "session" query parameter instead.
const SessionHeader = "X-Workspace-Session"

// SessionLookup reports whether a session id is live
type SessionLookup func(id string) bool

// RequireSession rejects requests without a live session
func RequireSession(lookup SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(SessionHeader))
			if id == "" {
				id = strings.TrimSpace(r.URL.Query().Get("session"))
			}
			if id == "" {
				http.Error(w, "missing "+SessionHeader+" header", http.StatusUnauthorized)
				return
			}
			if err := ValidateSessionID(id); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !lookup(id) {
				http.Error(w, "unknown or expired session", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
		})
	}
}

// WithSession stores the session id in ctx
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionKey, id)
}

// SessionFromContext extracts the session id from context
func SessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(SessionKey).(string); ok {
		return id
	}
	return ""
}
