package server

import (
	"log/slog"
	"net/http"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	"github.com/qaportal/portal/cmd/portalapi/internal/middleware"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

// HandleMe returns the caller's account view, provisioning it on first sight.
// Anonymous callers get 200 with a null body so the client can render its
// signed-out state without treating it as an error.
func HandleMe(accounts AccountProvisioner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		session, ok := auth.SessionFromContext(ctx)
		if !ok {
			httpx.WriteJSON(w, http.StatusOK, nil)
			return
		}

		identity, err := session.Identity()
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		view, err := accounts.EnsureAccount(ctx, identity)
		if err != nil {
			logger.ErrorContext(ctx, "ensure account failed", "session_id", session.SessionID, "error", err)
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// principal returns the caller resolved by middleware.RequirePrincipal,
// writing a 401 when it is missing.
func principal(w http.ResponseWriter, r *http.Request) (*iam.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteErrorCode(w, http.StatusUnauthorized, httpx.CodeUnauthenticated)
		return nil, false
	}
	return p, true
}
