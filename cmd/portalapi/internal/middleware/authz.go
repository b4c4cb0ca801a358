package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

// PrincipalResolver is the slice of iam.Service the authorization middleware needs.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, identity auth.Identity) (*iam.Principal, error)
}

type principalContextKey struct{}

// WithPrincipal stores the resolved principal on the context.
func WithPrincipal(ctx context.Context, principal *iam.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal placed by RequirePrincipal.
func PrincipalFromContext(ctx context.Context) (*iam.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*iam.Principal)
	return principal, ok && principal != nil
}

// RequirePrincipal resolves the session's identity to a provisioned account on
// every request and places it in the context. It must run after RequireSession.
//
// Responses: 401 without a session or account, 400 when the session's claims
// carry no identity, 503 when the store is unavailable.
func RequirePrincipal(resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			session, ok := auth.SessionFromContext(ctx)
			if !ok {
				httpx.WriteErrorCode(w, http.StatusUnauthorized, httpx.CodeUnauthenticated)
				return
			}

			identity, err := session.Identity()
			if err != nil {
				httpx.WriteError(w, err)
				return
			}

			principal, err := resolver.ResolvePrincipal(ctx, identity)
			if err != nil {
				if !errors.Is(err, iam.ErrAccountNotProvisioned) {
					logger.ErrorContext(ctx, "resolve principal failed", "session_id", session.SessionID, "error", err)
				}
				httpx.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRole rejects principals whose effective role is below min with 403.
// It must run after RequirePrincipal.
func RequireRole(min iam.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.WriteErrorCode(w, http.StatusUnauthorized, httpx.CodeUnauthenticated)
				return
			}
			if !principal.HasRole(min) {
				httpx.WriteErrorCode(w, http.StatusForbidden, httpx.CodeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireWriteAccess rejects principals that fail Principal.CanWrite with 403.
// It gates content-changing routes of downstream consumers.
func RequireWriteAccess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.WriteErrorCode(w, http.StatusUnauthorized, httpx.CodeUnauthenticated)
				return
			}
			if !principal.CanWrite() {
				httpx.WriteErrorCode(w, http.StatusForbidden, httpx.CodeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
