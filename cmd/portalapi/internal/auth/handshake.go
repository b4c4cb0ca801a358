package auth

import (
	"errors"
	"fmt"
)

// HandshakeState is the browser's position in the IdP handshake.
type HandshakeState string

const (
	StateAnonymous      HandshakeState = "anonymous"
	StateChallenged     HandshakeState = "challenged"
	StateTicketReceived HandshakeState = "ticket_received"
	StateSessionActive  HandshakeState = "session_active"
	StateSignedOut      HandshakeState = "signed_out"
)

// HandshakeEvent drives a transition.
type HandshakeEvent string

const (
	EventLogin     HandshakeEvent = "login"      // user asked to sign in
	EventTicket    HandshakeEvent = "ticket"     // IdP confirmed the identity
	EventEstablish HandshakeEvent = "establish"  // local session issued
	EventFailure   HandshakeEvent = "failure"    // IdP or validation failure
	EventLogout    HandshakeEvent = "logout"     // user asked to sign out
	EventSignedOut HandshakeEvent = "signed_out" // IdP finished its sign-out
)

// ErrInvalidTransition is returned for an event that is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid handshake transition")

type transition struct {
	from  HandshakeState
	event HandshakeEvent
}

var handshakeTransitions = map[transition]HandshakeState{
	{StateAnonymous, EventLogin}:          StateChallenged,
	{StateSignedOut, EventLogin}:          StateChallenged,
	{StateSessionActive, EventLogin}:      StateSessionActive,
	{StateChallenged, EventTicket}:        StateTicketReceived,
	{StateChallenged, EventFailure}:       StateAnonymous,
	{StateTicketReceived, EventFailure}:   StateAnonymous,
	{StateTicketReceived, EventEstablish}: StateSessionActive,
	{StateSessionActive, EventLogout}:     StateSignedOut,
	{StateSignedOut, EventSignedOut}:      StateAnonymous,
	{StateAnonymous, EventSignedOut}:      StateAnonymous,
}

// NextHandshakeState returns the state reached from `from` on ev.
func NextHandshakeState(from HandshakeState, ev HandshakeEvent) (HandshakeState, error) {
	next, ok := handshakeTransitions[transition{from, ev}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, ev)
	}
	return next, nil
}

// Handshake tracks one request's walk through the handshake and records every
// state it visits.
type Handshake struct {
	state HandshakeState
	trail []HandshakeState
}

// NewHandshake starts a handshake in state.
func NewHandshake(state HandshakeState) *Handshake {
	return &Handshake{state: state, trail: []HandshakeState{state}}
}

// State returns the current state.
func (h *Handshake) State() HandshakeState {
	return h.state
}

// Trail returns the visited states, oldest first.
func (h *Handshake) Trail() []HandshakeState {
	return append([]HandshakeState(nil), h.trail...)
}

// Fire applies ev and returns the new state.
func (h *Handshake) Fire(ev HandshakeEvent) (HandshakeState, error) {
	next, err := NextHandshakeState(h.state, ev)
	if err != nil {
		return h.state, err
	}
	h.state = next
	h.trail = append(h.trail, next)
	return next, nil
}
