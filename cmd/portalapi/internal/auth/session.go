package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// SessionCookieName is the default name of the local session cookie
	SessionCookieName = "portal.session"

	// SessionDuration is the default session lifetime (8 hours)
	SessionDuration = 8 * time.Hour

	// TokenLength is the length of generated session tokens in bytes
	TokenLength = 32
)

var (
	// ErrSessionExpired is returned for a session past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned for a session closed by logout.
	ErrSessionRevoked = errors.New("session revoked")
)

// GenerateSessionToken generates a cryptographically secure random session token
// Returns: token (hex string, the cookie value), token hash (SHA256 hex, the stored key), error
func GenerateSessionToken() (string, string, error) {
	tokenBytes := make([]byte, TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate random token: %w", err)
	}

	token := hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken hashes a session token for storage/lookup
// Returns SHA256 hex hash
func HashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateSession checks expiration and revocation at now
func ValidateSession(now, expiresAt time.Time, revoked bool) error {
	if revoked {
		return ErrSessionRevoked
	}
	if !now.Before(expiresAt) {
		return ErrSessionExpired
	}
	return nil
}

// ShouldRenewSession reports whether a session has used up more than half of
// its lifetime and should slide forward.
func ShouldRenewSession(now, expiresAt time.Time, lifetime time.Duration) bool {
	return expiresAt.Sub(now) < lifetime/2
}
