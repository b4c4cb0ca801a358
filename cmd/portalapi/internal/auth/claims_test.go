package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptClaims(t *testing.T) {
	tests := []struct {
		name     string
		scheme   string
		claims   map[string]any
		expected Identity
		err      error
	}{
		{
			name:     "standard oidc claims",
			scheme:   "corp-idp",
			claims:   map[string]any{"sub": "abc123", "email": "alice@example.com"},
			expected: Identity{Provider: "corp-idp", Subject: "abc123", Email: "alice@example.com"},
		},
		{
			name:   "oid outranks sub and preferred_username outranks email",
			scheme: "corp-idp",
			claims: map[string]any{
				"oid":                "object-1",
				"sub":                "pairwise-1",
				"preferred_username": "alice@corp.example",
				"email":              "alice@example.com",
			},
			expected: Identity{Provider: "corp-idp", Subject: "object-1", Email: "alice@corp.example"},
		},
		{
			name:   "empty higher priority claims fall through",
			scheme: "corp-idp",
			claims: map[string]any{
				"oid":                "  ",
				"sub":                "abc123",
				"preferred_username": "",
				"upn":                "alice@upn.example",
			},
			expected: Identity{Provider: "corp-idp", Subject: "abc123", Email: "alice@upn.example"},
		},
		{
			name: "ws-federation claim uris",
			claims: map[string]any{
				"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier": "ws-subject",
				"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress":   "bob@example.com",
			},
			expected: Identity{Provider: DefaultScheme, Subject: "ws-subject", Email: "bob@example.com"},
		},
		{
			name:     "numeric subject",
			scheme:   "corp-idp",
			claims:   map[string]any{"sub": float64(12345), "email": "carol@example.com"},
			expected: Identity{Provider: "corp-idp", Subject: "12345", Email: "carol@example.com"},
		},
		{
			name:     "json number subject",
			scheme:   "corp-idp",
			claims:   map[string]any{"sub": json.Number("678"), "email": "carol@example.com"},
			expected: Identity{Provider: "corp-idp", Subject: "678", Email: "carol@example.com"},
		},
		{
			name:   "missing email",
			scheme: "corp-idp",
			claims: map[string]any{"sub": "abc123"},
			err:    ErrMissingIdentityClaims,
		},
		{
			name:   "missing subject",
			scheme: "corp-idp",
			claims: map[string]any{"email": "alice@example.com"},
			err:    ErrMissingIdentityClaims,
		},
		{
			name:   "non-scalar claims are ignored",
			scheme: "corp-idp",
			claims: map[string]any{"sub": []any{"a"}, "email": map[string]any{"x": "y"}},
			err:    ErrMissingIdentityClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdaptClaims(tt.scheme, tt.claims)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "alice", LocalPart("alice@example.com"))
	assert.Equal(t, "svc", LocalPart("svc"))
}
