package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// SessionDependencies bundles collaborators required by the session middleware.
type SessionDependencies struct {
	Sessions repository.SessionRepository
	Cookies  auth.CookieOptions
	Lifetime time.Duration    // defaults to auth.SessionDuration
	Now      func() time.Time // defaults to time.Now
	Logger   *slog.Logger     // defaults to slog.Default()
	Metrics  *telemetry.AuthMetrics
}

// NewSessionMiddleware creates middleware that resolves the session cookie.
//
// Flow:
// 1. Check for the session cookie
// 2. If found: look up the session by token hash and validate it
// 3. If valid: attach auth.SessionInfo to the context, sliding the expiry forward once half the lifetime is used
// 4. If missing, unknown, expired or revoked: clear the cookie and continue anonymously
//
// Routes that need a session are wrapped in RequireSession.
func NewSessionMiddleware(deps SessionDependencies) func(http.Handler) http.Handler {
	lifetime := deps.Lifetime
	if lifetime <= 0 {
		lifetime = auth.SessionDuration
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := deps.Cookies.Read(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			started := time.Now()
			session, err := deps.Sessions.GetByTokenHash(ctx, auth.HashSessionToken(token))
			if errors.Is(err, repository.ErrNotFound) {
				deps.Metrics.RecordSessionLookup(ctx, "unknown", time.Since(started))
				deps.Cookies.Clear(w)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				deps.Metrics.RecordSessionLookup(ctx, "error", time.Since(started))
				logger.ErrorContext(ctx, "session lookup failed", "error", err)
				httpx.WriteErrorCode(w, http.StatusServiceUnavailable, httpx.CodeStoreUnavailable)
				return
			}

			current := now().UTC()
			if err := auth.ValidateSession(current, session.ExpiresAt, session.Revoked); err != nil {
				deps.Metrics.RecordSessionLookup(ctx, "rejected", time.Since(started))
				logger.DebugContext(ctx, "session rejected", "session_id", session.ID, "reason", err)
				deps.Cookies.Clear(w)
				next.ServeHTTP(w, r)
				return
			}

			outcome := "active"
			expiresAt := session.ExpiresAt
			if auth.ShouldRenewSession(current, expiresAt, lifetime) {
				renewed := current.Add(lifetime)
				if err := deps.Sessions.Touch(ctx, session.ID, current, renewed); err != nil {
					logger.WarnContext(ctx, "session renewal failed", "session_id", session.ID, "error", err)
				} else {
					expiresAt = renewed
					outcome = "renewed"
					deps.Cookies.Set(w, token, expiresAt)
					logger.DebugContext(ctx, "session renewed", "session_id", session.ID)
				}
			}

			deps.Metrics.RecordSessionLookup(ctx, outcome, time.Since(started))

			ctx = auth.WithSession(ctx, auth.SessionInfo{
				SessionID: session.ID,
				Scheme:    session.Scheme,
				Claims:    session.Claims,
				IDToken:   session.IDToken,
				ExpiresAt: expiresAt,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
