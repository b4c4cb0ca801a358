package middleware

import (
	"net/http"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
)

// Challenger answers a request that needs a session but has none.
// The broker either redirects to the IdP or, for API paths, responds 401.
type Challenger interface {
	Challenge(w http.ResponseWriter, r *http.Request)
}

// RequireSession passes requests carrying a valid session and challenges the rest.
// It must run after NewSessionMiddleware.
func RequireSession(challenger Challenger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.SessionFromContext(r.Context()); !ok {
				challenger.Challenge(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
