package auth

import (
	"context"
	"time"
)

// SessionInfo is the validated local session attached to a request.
type SessionInfo struct {
	SessionID string
	Scheme    string
	Claims    map[string]any
	IDToken   string
	ExpiresAt time.Time
}

// Identity adapts the session's claim set.
func (s SessionInfo) Identity() (Identity, error) {
	return AdaptClaims(s.Scheme, s.Claims)
}

type sessionContextKey struct{}

// WithSession stores the session on the context for downstream consumers.
func WithSession(ctx context.Context, session SessionInfo) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext retrieves the session from the context.
func SessionFromContext(ctx context.Context) (SessionInfo, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(SessionInfo)
	return session, ok
}
