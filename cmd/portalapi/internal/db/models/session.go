package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ClaimSet is the raw claim map received from the identity provider.
type ClaimSet map[string]any

// Scan implements sql.Scanner for reading from database
func (c *ClaimSet) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*c = ClaimSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan ClaimSet: unexpected type %T", value)
	}
	claims := ClaimSet{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return fmt.Errorf("failed to scan ClaimSet: %w", err)
	}
	*c = claims
	return nil
}

// Value implements driver.Valuer for writing to database
func (c ClaimSet) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Session is a local browser session established after a successful IdP handshake.
// It carries the ticket's claims rather than an account reference, so a session
// stays usable even when provisioning failed during the handshake.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID         string    `bun:"id,pk" json:"id"`
	TokenHash  string    `bun:"token_hash,notnull,unique" json:"token_hash"` // SHA256 of the cookie value
	Scheme     string    `bun:"idp_scheme,notnull" json:"idp_scheme"`
	Claims     ClaimSet  `bun:"claims,notnull" json:"claims"`
	IDToken    string    `bun:"id_token" json:"id_token"` // kept for the end-session id_token_hint
	UserAgent  *string   `bun:"user_agent" json:"user_agent,omitempty"`
	IPAddress  *string   `bun:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
	LastUsedAt time.Time `bun:"last_used_at,notnull" json:"last_used_at"`
	ExpiresAt  time.Time `bun:"expires_at,notnull" json:"expires_at"`
	Revoked    bool      `bun:"revoked,notnull" json:"revoked"`
}
