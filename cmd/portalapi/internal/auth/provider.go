package auth

import (
	"net/http"
	"time"
)

// FailureKind is the opaque error indicator handed to the browser on a failed handshake.
type FailureKind string

const (
	// FailureRemote means the IdP itself reported an error on the callback.
	FailureRemote FailureKind = "remote_failure"
	// FailureAuth means state, PKCE or token validation failed locally.
	FailureAuth FailureKind = "auth_failed"
)

// Ticket is the IdP's confirmation that a handshake succeeded.
type Ticket struct {
	Scheme  string
	Claims  map[string]any
	IDToken string
	Expiry  time.Time
}

// TicketHandler is invoked once a ticket has been received and validated.
type TicketHandler func(w http.ResponseWriter, r *http.Request, ticket Ticket)

// FailureHandler is invoked when the handshake fails. err is for logging only.
type FailureHandler func(w http.ResponseWriter, r *http.Request, kind FailureKind, err error)

// IdentityProvider is the broker's view of the external IdP.
type IdentityProvider interface {
	// Scheme labels sessions created from this provider's tickets.
	Scheme() string
	// Challenge redirects the browser to the IdP's authorization endpoint.
	Challenge(w http.ResponseWriter, r *http.Request)
	// Callback handles the IdP redirect back to this server.
	Callback(onTicket TicketHandler, onFailure FailureHandler) http.Handler
	// EndSessionURL builds the IdP sign-out URL. ok is false when the IdP has no end-session endpoint.
	EndSessionURL(idTokenHint, postLogoutRedirectURI, state string) (url string, ok bool)
}
