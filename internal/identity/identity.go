// Package identity resolves the chat session a request belongs to.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	// SessionHeaderName carries the session ID for clients that do not put
	// it in the request body.
	SessionHeaderName = "X-Session-ID"
	// DefaultSessionIDValue is the session used when none is supplied.
	DefaultSessionIDValue = "user1"
)

type contextKey int

const sessionIDKey contextKey = 0

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// SessionIDFromContext returns the session ID resolved by Middleware.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// Resolve picks the session for a request. A valid ID from the body wins,
// then the X-Session-ID header, then the session_id query parameter.
// Invalid or missing IDs resolve to the default session.
func Resolve(ctx context.Context, bodySessionID string) string {
	if sid, ok := sanitizeSessionID(bodySessionID); ok {
		return sid
	}
	return SessionIDFromContext(ctx)
}

// IsValidSessionID reports whether id is acceptable as a session key.
func IsValidSessionID(id string) bool {
	_, ok := sanitizeSessionID(id)
	return ok
}

func sanitizeSessionID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue, false
	}
	return id, true
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	sid, _ = sanitizeSessionID(sid)
	return sid
}

// Middleware stores the header or query session ID in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), sessionIDKey, sessionIDFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP for rate limiting and logs.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
