package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// RelyingPartyConfig configures the OIDC relying party.
type RelyingPartyConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Scheme       string

	// HashKey and BlockKey protect the short-lived state and PKCE cookies.
	// Random keys are generated when empty, which invalidates in-flight
	// handshakes on restart.
	HashKey  []byte
	BlockKey []byte
	// SecureCookies marks the handshake cookies Secure.
	SecureCookies bool
}

// RelyingParty handles OIDC authentication against an external IdP by wrapping
// the zitadel/oidc RelyingParty implementation.
type RelyingParty struct {
	rp        rp.RelyingParty
	scheme    string
	clientID  string
	challenge http.Handler
}

var _ IdentityProvider = (*RelyingParty)(nil)

type failureContextKey struct{}

// NewRelyingParty creates a new RelyingParty for external IdP authentication.
func NewRelyingParty(ctx context.Context, cfg RelyingPartyConfig) (*RelyingParty, error) {
	hashKey, err := keyOrRandom(cfg.HashKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie hash key: %w", err)
	}
	blockKey, err := keyOrRandom(cfg.BlockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie crypto key: %w", err)
	}

	var cookieOpts []httphelper.CookieHandlerOpt
	if !cfg.SecureCookies {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, blockKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
		rp.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, errorType, errorDesc, state string) {
			failureFrom(r)(w, r, FailureRemote, fmt.Errorf("idp error %s: %s", errorType, errorDesc))
		}),
		rp.WithUnauthorizedHandler(func(w http.ResponseWriter, r *http.Request, desc, state string) {
			failureFrom(r)(w, r, FailureAuth, errors.New(desc))
		}),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	scheme := cfg.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}

	return &RelyingParty{
		rp:       relyingParty,
		scheme:   scheme,
		clientID: cfg.ClientID,
		challenge: rp.AuthURLHandler(func() string {
			state, _ := GenerateNonce()
			return state
		}, relyingParty),
	}, nil
}

// Scheme implements IdentityProvider.
func (r *RelyingParty) Scheme() string {
	return r.scheme
}

// Challenge stores state and the PKCE verifier in handshake cookies and redirects to the IdP.
func (r *RelyingParty) Challenge(w http.ResponseWriter, req *http.Request) {
	r.challenge.ServeHTTP(w, req)
}

// Callback validates state and PKCE, exchanges the code and hands the verified
// claims to onTicket. Every failure reaches onFailure.
func (r *RelyingParty) Callback(onTicket TicketHandler, onFailure FailureHandler) http.Handler {
	exchange := rp.CodeExchangeHandler(func(w http.ResponseWriter, req *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], state string, _ rp.RelyingParty) {
		claims, err := ClaimsFromTokens(tokens)
		if err != nil {
			onFailure(w, req, FailureAuth, err)
			return
		}
		onTicket(w, req, Ticket{
			Scheme:  r.scheme,
			Claims:  claims,
			IDToken: tokens.IDToken,
			Expiry:  tokens.Expiry,
		})
	}, r.rp)

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.WithValue(req.Context(), failureContextKey{}, onFailure)
		exchange(w, req.WithContext(ctx))
	})
}

// EndSessionURL implements IdentityProvider.
func (r *RelyingParty) EndSessionURL(idTokenHint, postLogoutRedirectURI, state string) (string, bool) {
	endpoint := r.rp.GetEndSessionEndpoint()
	if endpoint == "" {
		return "", false
	}
	return BuildEndSessionURL(endpoint, r.clientID, idTokenHint, postLogoutRedirectURI, state), true
}

// BuildEndSessionURL appends the RP-initiated logout parameters to endpoint.
func BuildEndSessionURL(endpoint, clientID, idTokenHint, postLogoutRedirectURI, state string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if clientID != "" {
		q.Set("client_id", clientID)
	}
	if postLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func failureFrom(r *http.Request) FailureHandler {
	if h, ok := r.Context().Value(failureContextKey{}).(FailureHandler); ok {
		return h
	}
	return func(w http.ResponseWriter, _ *http.Request, _ FailureKind, _ error) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
}

func keyOrRandom(key []byte) ([]byte, error) {
	if len(key) > 0 {
		return key, nil
	}
	return generateRandomBytes(32)
}

// generateRandomBytes creates a slice of random bytes of a specified size.
func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random nonce string.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
