package storage

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Client is a registered OAuth client. Secrets are stored as bcrypt hashes;
// the plaintext exists only at registration time.
type Client struct {
	// ID is the public client_id.
	ID string `json:"id"`

	// SecretHash is the bcrypt digest of the client secret.
	SecretHash []byte `json:"secret_hash"`

	// RedirectURIs lists the exact redirect URIs the client registered.
	// Matching is literal string equality, no normalization.
	RedirectURIs []string `json:"redirect_uris"`

	// Name is a human-readable label for consent screens and audit logs.
	Name string `json:"name,omitempty"`

	// Scopes restricts what the client may request. Empty means any known
	// scope.
	Scopes []string `json:"scopes,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// MatchesSecret reports whether secret is the client's plaintext secret.
// Comparison runs through bcrypt and is constant-time on the digest.
func (c *Client) MatchesSecret(secret string) bool {
	return bcrypt.CompareHashAndPassword(c.SecretHash, []byte(secret)) == nil
}

// IsValidRedirectURI reports whether uri exactly matches a registered
// redirect URI.
func (c *Client) IsValidRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the client may request the scope. Clients
// with no scope restriction may request anything.
func (c *Client) AllowsScope(scopeID string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scopeID {
			return true
		}
	}
	return false
}

// HashClientSecret produces the bcrypt digest stored in SecretHash.
func HashClientSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
