package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/dbtest"
	"github.com/qaportal/portal/cmd/portalapi/internal/middleware"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

const (
	testFrontend      = "https://portal.example.com"
	testPostLogoutURI = "https://api.example.com/signout-callback-oidc"
	testAuthorizeURL  = "https://idp.example.com/authorize"
	testEndSessionURL = "https://idp.example.com/logout"
)

// fakeProvider stands in for the OIDC relying party. Its callback accepts
// state=ok and looks the ticket up by the code parameter.
type fakeProvider struct {
	mu          sync.Mutex
	tickets     map[string]auth.Ticket
	endSession  bool
	challenged  int
	idTokenHint string
	postLogout  string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{tickets: map[string]auth.Ticket{}, endSession: true}
}

func (p *fakeProvider) Scheme() string { return auth.DefaultScheme }

func (p *fakeProvider) Challenge(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.challenged++
	p.mu.Unlock()
	http.Redirect(w, r, testAuthorizeURL, http.StatusFound)
}

func (p *fakeProvider) Callback(onTicket auth.TicketHandler, onFailure auth.FailureHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			onFailure(w, r, auth.FailureRemote, errors.New(e))
			return
		}
		if q.Get("state") != "ok" {
			onFailure(w, r, auth.FailureAuth, errors.New("state mismatch"))
			return
		}
		p.mu.Lock()
		ticket, ok := p.tickets[q.Get("code")]
		p.mu.Unlock()
		if !ok {
			onFailure(w, r, auth.FailureAuth, errors.New("invalid_grant"))
			return
		}
		onTicket(w, r, ticket)
	})
}

func (p *fakeProvider) EndSessionURL(idTokenHint, postLogoutRedirectURI, state string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokenHint = idTokenHint
	p.postLogout = postLogoutRedirectURI
	if !p.endSession {
		return "", false
	}
	return auth.BuildEndSessionURL(testEndSessionURL, "portal-client", idTokenHint, postLogoutRedirectURI, state), true
}

func (p *fakeProvider) challenges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.challenged
}

// addUser registers a ticket for code carrying the usual Entra-style claims.
func (p *fakeProvider) addUser(code, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets[code] = auth.Ticket{
		Scheme: auth.DefaultScheme,
		Claims: map[string]any{
			"oid":                "oid-" + code,
			"preferred_username": email,
			"name":               code,
		},
		IDToken: "id-token-" + code,
		Expiry:  time.Now().Add(time.Hour),
	}
}

type testServer struct {
	handler  http.Handler
	broker   *Broker
	provider *fakeProvider
	sessions *repository.BunSessionRepository
	svc      iam.Service
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickingClock advances one second per reading so role log entries never share a timestamp.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Now().UTC()
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := dbtest.NewSQLite(t)
	store := repository.NewBunStore(db)
	sessions := repository.NewBunSessionRepository(db)
	logger := quietLogger()

	svc, err := iam.NewIAMService(iam.IAMServiceDependencies{Store: store, Logger: logger},
		iam.IAMServiceConfig{Clock: tickingClock()})
	require.NoError(t, err)

	provider := newFakeProvider()
	cookies := auth.CookieOptions{Name: auth.SessionCookieName}
	broker, err := NewBroker(BrokerDependencies{
		Provider: provider,
		Sessions: sessions,
		Accounts: svc,
		Logger:   logger,
	}, BrokerConfig{
		FrontendURL:           testFrontend + "/",
		PostLogoutRedirectURI: testPostLogoutURI,
		Cookies:               cookies,
	})
	require.NoError(t, err)

	router := NewRouter(RouterOptions{
		Broker:     broker,
		IAMService: svc,
		Sessions: middleware.SessionDependencies{
			Sessions: sessions,
			Cookies:  cookies,
			Logger:   logger,
		},
		Logger:         logger,
		LoginRateLimit: 1000,
	})

	return &testServer{handler: router, broker: broker, provider: provider, sessions: sessions, svc: svc}
}

// do sends a request with an optional JSON body and session cookie.
func (ts *testServer) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// login completes the callback for a registered user and returns the session cookie.
func (ts *testServer) login(t *testing.T, code, email string) *http.Cookie {
	t.Helper()
	ts.provider.addUser(code, email)
	rec := ts.do(http.MethodGet, "/signin-oidc?state=ok&code="+url.QueryEscape(code), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, testFrontend+ClientCallbackPath, rec.Header().Get("Location"))

	cookie := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	return cookie
}

func (ts *testServer) accountID(t *testing.T, email string) int64 {
	t.Helper()
	views, err := ts.svc.ListAccounts(context.Background(), nil)
	require.NoError(t, err)
	for _, v := range views {
		if v.Email == email {
			return v.ID
		}
	}
	t.Fatalf("no account for %s", email)
	return 0
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
