package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextHandshakeState(t *testing.T) {
	tests := []struct {
		from     HandshakeState
		event    HandshakeEvent
		expected HandshakeState
		invalid  bool
	}{
		{StateAnonymous, EventLogin, StateChallenged, false},
		{StateSessionActive, EventLogin, StateSessionActive, false},
		{StateChallenged, EventTicket, StateTicketReceived, false},
		{StateChallenged, EventFailure, StateAnonymous, false},
		{StateTicketReceived, EventEstablish, StateSessionActive, false},
		{StateTicketReceived, EventFailure, StateAnonymous, false},
		{StateSessionActive, EventLogout, StateSignedOut, false},
		{StateSignedOut, EventSignedOut, StateAnonymous, false},
		{StateSignedOut, EventLogin, StateChallenged, false},
		{StateAnonymous, EventLogout, StateAnonymous, true},
		{StateAnonymous, EventEstablish, StateAnonymous, true},
		{StateSessionActive, EventTicket, StateSessionActive, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			next, err := NextHandshakeState(tt.from, tt.event)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestHandshake_Trail(t *testing.T) {
	h := NewHandshake(StateChallenged)
	_, err := h.Fire(EventTicket)
	require.NoError(t, err)
	_, err = h.Fire(EventEstablish)
	require.NoError(t, err)

	_, err = h.Fire(EventTicket)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, StateSessionActive, h.State())
	assert.Equal(t, []HandshakeState{StateChallenged, StateTicketReceived, StateSessionActive}, h.Trail())
}
