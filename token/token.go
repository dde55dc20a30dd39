// Package token defines the artifacts the authorization server issues:
// access tokens, authorization codes, and refresh tokens. An entity holds
// only a PBKDF2 hash of the issued value; the plaintext exists exactly once,
// in the Created pairing a factory returns, and is never persisted.
package token

import (
	"time"

	"github.com/grantkit/oauth/security"
)

// Token is the shared shape of all issued artifacts. The ID is independent
// of the secret value so stores can index tokens without ever seeing
// plaintext. After creation the only permitted mutation is Revoke; expiry
// is derived from the clock, not stored state.
type Token struct {
	// ID is a stable identifier, embedded in the issued value by the
	// formatter so lookups can be done by ID.
	ID string

	// Hash, Salt and Iterations describe the PBKDF2-SHA256 digest of the
	// issued plaintext value.
	Hash       []byte
	Salt       []byte
	Iterations int

	// ClientID and UserID reference the owning client and user. The token
	// does not own either lifecycle.
	ClientID string
	UserID   string

	// Scopes holds the scope IDs granted at issuance. Treated as immutable.
	Scopes []string

	// ExpiresAt is the absolute expiry. The zero time means the token never
	// expires (refresh tokens only).
	ExpiresAt time.Time

	// Revoked transitions false to true exactly once and never reverts.
	Revoked bool
}

// Matches reports whether value is the plaintext this token was issued
// with, by recomputing the hash under the stored salt and iteration count.
func (t *Token) Matches(value string) bool {
	return security.VerifyValue(value, t.Hash, t.Salt, t.Iterations)
}

// Revoke marks the token revoked. Idempotent; there is no way back.
func (t *Token) Revoke() {
	t.Revoked = true
}

// Expired reports whether the token's expiry has passed. Tokens without an
// expiry never expire.
func (t *Token) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(t.ExpiresAt)
}

// Valid reports whether the token is neither expired nor revoked.
func (t *Token) Valid() bool {
	return !t.Expired() && !t.Revoked
}

// HasScope reports whether the token was granted the scope. Scope equality
// is by ID.
func (t *Token) HasScope(scopeID string) bool {
	for _, s := range t.Scopes {
		if s == scopeID {
			return true
		}
	}
	return false
}

// AccessToken is a bearer token granting access to protected resources.
type AccessToken struct {
	Token
}

// AuthorizationCode is the short-lived, single-use artifact of the
// authorization code flow. The redirect URI used at issuance is bound to
// the code and must match exactly at exchange time.
type AuthorizationCode struct {
	Token

	RedirectURI string
}

// RefreshToken is a long-lived credential exchangeable for new access
// tokens. It may be configured to never expire.
type RefreshToken struct {
	Token
}

// Created pairs a freshly minted entity with its one-time plaintext value.
// The value must be handed to the client and then discarded; only the hash
// inside the entity survives.
type Created[T any] struct {
	Token T
	Value string
}
