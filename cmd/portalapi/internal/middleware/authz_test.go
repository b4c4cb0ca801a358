package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

type stubResolver struct {
	principal *iam.Principal
	err       error
	calls     int
	lastID    auth.Identity
}

func (s *stubResolver) ResolvePrincipal(_ context.Context, identity auth.Identity) (*iam.Principal, error) {
	s.calls++
	s.lastID = identity
	return s.principal, s.err
}

func sessionRequest(claims map[string]any) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if claims != nil {
		req = req.WithContext(auth.WithSession(req.Context(), auth.SessionInfo{
			SessionID: "s1",
			Scheme:    "idp",
			Claims:    claims,
		}))
	}
	return req
}

func principalEcho(seen **iam.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		*seen = p
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePrincipal(t *testing.T) {
	aliceClaims := map[string]any{"oid": "oid-alice", "preferred_username": "alice@example.com"}

	t.Run("resolves and stores principal", func(t *testing.T) {
		resolver := &stubResolver{principal: &iam.Principal{AccountID: 1, Role: iam.RoleSuperAdmin}}
		var seen *iam.Principal
		rec := httptest.NewRecorder()
		RequirePrincipal(resolver, quietLogger())(principalEcho(&seen)).ServeHTTP(rec, sessionRequest(aliceClaims))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(1), seen.AccountID)
		assert.Equal(t, auth.Identity{Provider: "idp", Subject: "oid-alice", Email: "alice@example.com"}, resolver.lastID)
	})

	tests := []struct {
		name   string
		claims map[string]any
		err    error
		status int
		body   string
	}{
		{"no session", nil, nil, http.StatusUnauthorized, `{"error":"unauthenticated"}`},
		{"missing claims", map[string]any{"sub": "x"}, nil, http.StatusBadRequest, `{"error":"missing_identity_claims"}`},
		{"not provisioned", aliceClaims, iam.ErrAccountNotProvisioned, http.StatusUnauthorized, `{"error":"account_not_provisioned"}`},
		{"store down", aliceClaims, fmt.Errorf("resolve: %w", iam.ErrStoreUnavailable), http.StatusServiceUnavailable, `{"error":"store_unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &stubResolver{err: tt.err}
			var seen *iam.Principal
			rec := httptest.NewRecorder()
			RequirePrincipal(resolver, quietLogger())(principalEcho(&seen)).ServeHTTP(rec, sessionRequest(tt.claims))

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			assert.Nil(t, seen)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name      string
		principal *iam.Principal
		min       iam.Role
		status    int
	}{
		{"no principal", nil, iam.RoleAdmin, http.StatusUnauthorized},
		{"below", &iam.Principal{Role: iam.RoleUser}, iam.RoleAdmin, http.StatusForbidden},
		{"equal", &iam.Principal{Role: iam.RoleAdmin}, iam.RoleAdmin, http.StatusOK},
		{"above", &iam.Principal{Role: iam.RoleSuperAdmin}, iam.RoleAdmin, http.StatusOK},
		{"none", &iam.Principal{Role: iam.RoleNone}, iam.RoleDefaultUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()
			RequireRole(tt.min)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireWriteAccess(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	pending := &iam.Principal{Role: iam.RoleUser, Status: models.AccountStatusActive, ApprovalStatus: models.ApprovalPending}
	approved := &iam.Principal{Role: iam.RoleUser, Status: models.AccountStatusActive, ApprovalStatus: models.ApprovalApproved}

	for principal, want := range map[*iam.Principal]int{pending: http.StatusForbidden, approved: http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/api/questions", nil)
		req = req.WithContext(WithPrincipal(req.Context(), principal))
		rec := httptest.NewRecorder()
		RequireWriteAccess()(ok).ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}
