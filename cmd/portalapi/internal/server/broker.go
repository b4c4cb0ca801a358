package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/bunx"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	"github.com/qaportal/portal/cmd/portalapi/internal/middleware"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// ClientCallbackPath is the frontend route the browser lands on after every
// completed login or logout.
const ClientCallbackPath = "/auth-callback"

// AccountProvisioner is the slice of iam.Service the broker needs at ticket time.
type AccountProvisioner interface {
	EnsureAccount(ctx context.Context, identity auth.Identity) (*iam.AccountView, error)
}

// BrokerDependencies contains the broker's collaborators.
type BrokerDependencies struct {
	Provider auth.IdentityProvider
	Sessions repository.SessionRepository
	Accounts AccountProvisioner
	Metrics  *telemetry.AuthMetrics // optional
	Logger   *slog.Logger           // optional, defaults to slog.Default()
}

// BrokerConfig holds the broker's redirect targets and session settings.
type BrokerConfig struct {
	// FrontendURL is the browser client's base URL.
	FrontendURL string
	// PostLogoutRedirectURI is the absolute signed-out callback URL sent to the IdP.
	PostLogoutRedirectURI string
	Cookies               auth.CookieOptions
	Lifetime              time.Duration    // defaults to auth.SessionDuration
	Now                   func() time.Time // defaults to time.Now
}

// Broker runs the browser side of the OIDC handshake and owns the local
// session. Browsers never see IdP tokens, only the opaque session cookie.
type Broker struct {
	provider auth.IdentityProvider
	sessions repository.SessionRepository
	accounts AccountProvisioner
	metrics  *telemetry.AuthMetrics
	logger   *slog.Logger

	frontend        string
	postLogoutURI   string
	cookies         auth.CookieOptions
	lifetime        time.Duration
	now             func() time.Time
	callbackHandler http.Handler
}

var _ middleware.Challenger = (*Broker)(nil)

// NewBroker validates the dependencies and returns a ready broker.
func NewBroker(deps BrokerDependencies, cfg BrokerConfig) (*Broker, error) {
	if deps.Provider == nil {
		return nil, errors.New("broker requires an identity provider")
	}
	if deps.Sessions == nil {
		return nil, errors.New("broker requires a session repository")
	}
	if deps.Accounts == nil {
		return nil, errors.New("broker requires an account provisioner")
	}
	frontend, err := url.Parse(cfg.FrontendURL)
	if err != nil || frontend.Scheme == "" || frontend.Host == "" {
		return nil, errors.New("broker requires an absolute frontend URL")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = auth.SessionDuration
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	b := &Broker{
		provider:      deps.Provider,
		sessions:      deps.Sessions,
		accounts:      deps.Accounts,
		metrics:       deps.Metrics,
		logger:        logger.With("component", "broker"),
		frontend:      strings.TrimRight(cfg.FrontendURL, "/"),
		postLogoutURI: cfg.PostLogoutRedirectURI,
		cookies:       cfg.Cookies,
		lifetime:      lifetime,
		now:           now,
	}
	b.callbackHandler = deps.Provider.Callback(b.onTicket, b.onFailure)
	return b, nil
}

// FrontendOrigin is the value echoed in Access-Control-Allow-Origin.
func (b *Broker) FrontendOrigin() string {
	return b.frontend
}

func (b *Broker) clientCallbackURL() string {
	return b.frontend + ClientCallbackPath
}

func (b *Broker) loginErrorURL(kind auth.FailureKind) string {
	return b.frontend + "/login?error=" + url.QueryEscape(string(kind))
}

// Login handles GET /api/login. An authenticated browser goes straight back to
// the client; anyone else is challenged. The post-login target is fixed and no
// query parameter can change it.
func (b *Broker) Login(w http.ResponseWriter, r *http.Request) {
	start := auth.StateAnonymous
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		start = auth.StateSessionActive
	}

	h := auth.NewHandshake(start)
	state, err := h.Fire(auth.EventLogin)
	if err != nil {
		b.logger.ErrorContext(r.Context(), "login transition rejected", "error", err)
		http.Redirect(w, r, b.loginErrorURL(auth.FailureAuth), http.StatusFound)
		return
	}

	if state == auth.StateSessionActive {
		http.Redirect(w, r, b.clientCallbackURL(), http.StatusFound)
		return
	}
	b.metrics.RecordLogin(r.Context(), "challenged")
	b.provider.Challenge(w, r)
}

// Callback handles the IdP redirect to the configured callback path.
func (b *Broker) Callback(w http.ResponseWriter, r *http.Request) {
	b.callbackHandler.ServeHTTP(w, r)
}

// onTicket provisions the account and issues the local session. Provisioning
// errors never block the login; the session is issued regardless.
func (b *Broker) onTicket(w http.ResponseWriter, r *http.Request, ticket auth.Ticket) {
	ctx := r.Context()

	h := auth.NewHandshake(auth.StateChallenged)
	if _, err := h.Fire(auth.EventTicket); err != nil {
		b.fail(w, r, h, auth.FailureAuth, err)
		return
	}

	scheme := ticket.Scheme
	if scheme == "" {
		scheme = b.provider.Scheme()
	}

	if identity, err := auth.AdaptClaims(scheme, ticket.Claims); err != nil {
		b.logger.WarnContext(ctx, "ticket carries no usable identity; skipping provisioning", "error", err)
	} else if _, err := b.accounts.EnsureAccount(ctx, identity); err != nil {
		b.logger.ErrorContext(ctx, "provisioning during login failed",
			"provider", identity.Provider,
			"subject", identity.Subject,
			"error", err,
		)
	}

	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		b.fail(w, r, h, auth.FailureAuth, err)
		return
	}
	current := b.now().UTC()
	session := &models.Session{
		ID:         bunx.NewUUIDv7(),
		TokenHash:  hash,
		Scheme:     scheme,
		Claims:     models.ClaimSet(ticket.Claims),
		IDToken:    ticket.IDToken,
		UserAgent:  optionalString(r.UserAgent()),
		IPAddress:  optionalString(r.RemoteAddr),
		CreatedAt:  current,
		LastUsedAt: current,
		ExpiresAt:  current.Add(b.lifetime),
	}
	if err := b.sessions.Create(ctx, session); err != nil {
		b.fail(w, r, h, auth.FailureAuth, err)
		return
	}

	if _, err := h.Fire(auth.EventEstablish); err != nil {
		b.fail(w, r, h, auth.FailureAuth, err)
		return
	}

	b.cookies.Set(w, token, session.ExpiresAt)
	b.metrics.RecordLogin(ctx, "established")
	b.logger.InfoContext(ctx, "session established", "session_id", session.ID, "scheme", scheme)
	http.Redirect(w, r, b.clientCallbackURL(), http.StatusFound)
}

// onFailure handles failures reported by the provider before a ticket exists.
func (b *Broker) onFailure(w http.ResponseWriter, r *http.Request, kind auth.FailureKind, err error) {
	b.fail(w, r, auth.NewHandshake(auth.StateChallenged), kind, err)
}

func (b *Broker) fail(w http.ResponseWriter, r *http.Request, h *auth.Handshake, kind auth.FailureKind, err error) {
	if _, ferr := h.Fire(auth.EventFailure); ferr != nil {
		b.logger.ErrorContext(r.Context(), "failure transition rejected", "error", ferr)
	}
	b.logger.WarnContext(r.Context(), "authentication handshake failed", "kind", kind, "error", err)
	b.metrics.RecordLogin(r.Context(), string(kind))
	b.cookies.Clear(w)
	http.Redirect(w, r, b.loginErrorURL(kind), http.StatusFound)
}

// Logout handles GET /api/logout. It must run behind middleware.RequireSession.
func (b *Broker) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		b.Challenge(w, r)
		return
	}

	h := auth.NewHandshake(auth.StateSessionActive)
	if _, err := h.Fire(auth.EventLogout); err != nil {
		b.logger.ErrorContext(ctx, "logout transition rejected", "error", err)
		httpx.WriteErrorCode(w, http.StatusInternalServerError, httpx.CodeInternal)
		return
	}

	target := b.clientCallbackURL()
	state, err := auth.GenerateNonce()
	if err != nil {
		b.logger.WarnContext(ctx, "generate logout state failed", "error", err)
	}
	if endSession, ok := b.provider.EndSessionURL(session.IDToken, b.postLogoutURI, state); ok {
		target = endSession
	}

	if err := b.sessions.Revoke(ctx, session.SessionID); err != nil {
		b.logger.ErrorContext(ctx, "revoke session failed", "session_id", session.SessionID, "error", err)
	}
	b.cookies.Clear(w)
	b.metrics.RecordLogin(ctx, "logout")
	b.logger.InfoContext(ctx, "session signed out", "session_id", session.SessionID)
	http.Redirect(w, r, target, http.StatusFound)
}

// SignedOut handles the IdP's post-logout redirect.
func (b *Broker) SignedOut(w http.ResponseWriter, r *http.Request) {
	h := auth.NewHandshake(auth.StateSignedOut)
	if _, err := h.Fire(auth.EventSignedOut); err != nil {
		b.logger.ErrorContext(r.Context(), "signed-out transition rejected", "error", err)
	}
	http.Redirect(w, r, b.clientCallbackURL(), http.StatusFound)
}

// Challenge answers a request that needs a session. API paths get a 401 the
// browser client can read cross-origin; everything else is sent to the IdP.
func (b *Broker) Challenge(w http.ResponseWriter, r *http.Request) {
	if IsSuppressedPath(r.URL.Path) {
		header := w.Header()
		if header.Get("Access-Control-Allow-Origin") == "" {
			header.Set("Access-Control-Allow-Origin", b.frontend)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Allow-Headers", "*")
		}
		httpx.WriteErrorCode(w, http.StatusUnauthorized, httpx.CodeUnauthenticated)
		return
	}

	h := auth.NewHandshake(auth.StateAnonymous)
	if _, err := h.Fire(auth.EventLogin); err != nil {
		b.logger.ErrorContext(r.Context(), "challenge transition rejected", "error", err)
	}
	b.metrics.RecordLogin(r.Context(), "challenged")
	b.provider.Challenge(w, r)
}

// IsSuppressedPath reports whether an unauthenticated request to path is
// answered with 401 instead of an IdP redirect: paths under the /api segment
// except /api/login and /api/logout. Matching is by segment, ignoring case.
func IsSuppressedPath(path string) bool {
	if !hasSegmentPrefix(path, "/api") {
		return false
	}
	return !hasSegmentPrefix(path, "/api/login") && !hasSegmentPrefix(path, "/api/logout")
}

func hasSegmentPrefix(path, prefix string) bool {
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
