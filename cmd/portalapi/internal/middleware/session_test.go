package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type memorySessions struct {
	mu       sync.Mutex
	byHash   map[string]*models.Session
	touched  []string
	failWith error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{byHash: map[string]*models.Session{}}
}

func (m *memorySessions) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHash[s.TokenHash] = s
	return nil
}

func (m *memorySessions) GetByTokenHash(_ context.Context, hash string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	s, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("get session: %w", repository.ErrNotFound)
	}
	copied := *s
	return &copied, nil
}

func (m *memorySessions) Touch(_ context.Context, id string, lastUsedAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byHash {
		if s.ID == id {
			s.LastUsedAt = lastUsedAt
			s.ExpiresAt = expiresAt
			m.touched = append(m.touched, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memorySessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byHash {
		if s.ID == id {
			s.Revoked = true
		}
	}
	return nil
}

func (m *memorySessions) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// seed stores a session expiring at expiresAt and returns its cookie token.
func (m *memorySessions) seed(t *testing.T, id string, expiresAt time.Time, revoked bool) string {
	t.Helper()
	token, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	require.NoError(t, m.Create(context.Background(), &models.Session{
		ID:         id,
		TokenHash:  hash,
		Scheme:     "idp",
		Claims:     models.ClaimSet{"sub": "alice", "email": "alice@example.com"},
		IDToken:    "id-token-" + id,
		CreatedAt:  testNow.Add(-time.Hour),
		LastUsedAt: testNow.Add(-time.Hour),
		ExpiresAt:  expiresAt,
		Revoked:    revoked,
	}))
	return token
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSessionHandler(sessions repository.SessionRepository, seen *auth.SessionInfo) http.Handler {
	mw := NewSessionMiddleware(SessionDependencies{
		Sessions: sessions,
		Cookies:  auth.CookieOptions{Name: auth.SessionCookieName},
		Lifetime: 8 * time.Hour,
		Now:      func() time.Time { return testNow },
		Logger:   quietLogger(),
	})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := auth.SessionFromContext(r.Context()); ok {
			*seen = info
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func requestWithCookie(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	}
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionMiddleware_ValidSession(t *testing.T) {
	sessions := newMemorySessions()
	token := sessions.seed(t, "s1", testNow.Add(7*time.Hour), false)

	var seen auth.SessionInfo
	rec := httptest.NewRecorder()
	newSessionHandler(sessions, &seen).ServeHTTP(rec, requestWithCookie(token))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "s1", seen.SessionID)
	assert.Equal(t, "id-token-s1", seen.IDToken)
	assert.Equal(t, "alice", seen.Claims["sub"])
	assert.Empty(t, sessions.touched, "fresh sessions are not renewed")
	assert.Nil(t, findCookie(rec, auth.SessionCookieName))
}

func TestSessionMiddleware_SlidingRenewal(t *testing.T) {
	sessions := newMemorySessions()
	token := sessions.seed(t, "s1", testNow.Add(2*time.Hour), false)

	var seen auth.SessionInfo
	rec := httptest.NewRecorder()
	newSessionHandler(sessions, &seen).ServeHTTP(rec, requestWithCookie(token))

	assert.Equal(t, []string{"s1"}, sessions.touched)
	assert.True(t, seen.ExpiresAt.Equal(testNow.Add(8*time.Hour)))

	cookie := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestSessionMiddleware_RejectedSessions(t *testing.T) {
	sessions := newMemorySessions()
	expired := sessions.seed(t, "expired", testNow, false)
	revoked := sessions.seed(t, "revoked", testNow.Add(time.Hour), true)

	for name, token := range map[string]string{
		"expired": expired,
		"revoked": revoked,
		"unknown": "not-a-session",
	} {
		t.Run(name, func(t *testing.T) {
			var seen auth.SessionInfo
			rec := httptest.NewRecorder()
			newSessionHandler(sessions, &seen).ServeHTTP(rec, requestWithCookie(token))

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, seen.SessionID)

			cookie := findCookie(rec, auth.SessionCookieName)
			require.NotNil(t, cookie, "cookie is cleared")
			assert.Equal(t, -1, cookie.MaxAge)
		})
	}
}

func TestSessionMiddleware_NoCookie(t *testing.T) {
	var seen auth.SessionInfo
	rec := httptest.NewRecorder()
	newSessionHandler(newMemorySessions(), &seen).ServeHTTP(rec, requestWithCookie(""))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, seen.SessionID)
}

func TestSessionMiddleware_StoreUnavailable(t *testing.T) {
	sessions := newMemorySessions()
	sessions.failWith = fmt.Errorf("get session: %w", repository.ErrUnavailable)

	var seen auth.SessionInfo
	rec := httptest.NewRecorder()
	newSessionHandler(sessions, &seen).ServeHTTP(rec, requestWithCookie("token"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"store_unavailable"}`, rec.Body.String())
}

type recordingChallenger struct{ called bool }

func (c *recordingChallenger) Challenge(w http.ResponseWriter, _ *http.Request) {
	c.called = true
	w.WriteHeader(http.StatusUnauthorized)
}

func TestRequireSession(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	challenger := &recordingChallenger{}
	rec := httptest.NewRecorder()
	RequireSession(challenger)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logout", nil))
	assert.True(t, challenger.called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	challenger = &recordingChallenger{}
	req := httptest.NewRequest(http.MethodGet, "/api/logout", nil)
	req = req.WithContext(auth.WithSession(req.Context(), auth.SessionInfo{SessionID: "s1"}))
	rec = httptest.NewRecorder()
	RequireSession(challenger)(ok).ServeHTTP(rec, req)
	assert.False(t, challenger.called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
