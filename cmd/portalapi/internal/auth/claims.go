package auth

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DefaultScheme is the provider label used when a session carries no scheme.
const DefaultScheme = "idp"

// ErrMissingIdentityClaims is returned when a claim set yields no usable subject or email.
var ErrMissingIdentityClaims = errors.New("missing identity claims")

// EmailClaims lists the claims that may carry the account email, highest priority first.
var EmailClaims = []string{
	"preferred_username",
	"upn",
	"email",
	"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress",
}

// SubjectClaims lists the claims that may carry the stable subject identifier, highest priority first.
var SubjectClaims = []string{
	"oid",
	"sub",
	"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier",
}

// Identity is the external identity binding of an account.
type Identity struct {
	Provider string
	Subject  string
	Email    string
}

// AdaptClaims extracts the (provider, subject, email) triple from an IdP claim set.
// scheme is the authentication scheme label attached to the session.
func AdaptClaims(scheme string, claims map[string]any) (Identity, error) {
	provider := strings.TrimSpace(scheme)
	if provider == "" {
		provider = DefaultScheme
	}

	id := Identity{
		Provider: provider,
		Subject:  FirstClaim(claims, SubjectClaims),
		Email:    FirstClaim(claims, EmailClaims),
	}
	if id.Subject == "" || id.Email == "" {
		return Identity{}, ErrMissingIdentityClaims
	}
	return id, nil
}

// FirstClaim returns the first non-empty value among keys.
func FirstClaim(claims map[string]any, keys []string) string {
	for _, key := range keys {
		if value, ok := ClaimString(claims, key); ok {
			return value
		}
	}
	return ""
}

// ClaimString returns a scalar claim as a trimmed string. Numeric claims are
// weakly decoded ("12345"); objects, arrays and booleans are ignored.
func ClaimString(claims map[string]any, key string) (string, bool) {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return "", false
	}

	switch raw.(type) {
	case string, json.Number, float32, float64, int, int32, int64, uint, uint32, uint64:
	default:
		return "", false
	}

	var value string
	if err := mapstructure.WeakDecode(raw, &value); err != nil {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// LocalPart returns the portion of an email before the first "@".
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
