package token

import (
	"fmt"
	"time"

	"github.com/grantkit/oauth/security"
)

// Random value lengths in bytes, before base64url encoding.
const (
	AccessTokenValueLength       = 40
	AuthorizationCodeValueLength = 28
	RefreshTokenValueLength      = 28

	// idLength is the random byte length of every token ID.
	idLength = 9
)

// PBKDF2 iteration counts per artifact. Refresh tokens are long-lived and
// hashed like passwords.
const (
	AccessTokenIterations       = 4096
	AuthorizationCodeIterations = 4096
	RefreshTokenIterations      = 120000
)

// mint generates a random value and an independent random ID, formats them
// into the issued plaintext, and hashes that plaintext into a base entity.
// Factories never fail under normal operation; an error here means the
// system RNG is broken.
func mint(valueLength, iterations int, ttl time.Duration, clientID, userID string, scopes []string) (Token, string, error) {
	secret, err := security.RandomValue(valueLength)
	if err != nil {
		return Token{}, "", fmt.Errorf("failed to generate token value: %w", err)
	}
	id, err := security.RandomValue(idLength)
	if err != nil {
		return Token{}, "", fmt.Errorf("failed to generate token id: %w", err)
	}

	value := FormatValue(id, secret)
	hash, salt, err := security.HashValue(value, iterations)
	if err != nil {
		return Token{}, "", fmt.Errorf("failed to hash token value: %w", err)
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	granted := make([]string, len(scopes))
	copy(granted, scopes)

	return Token{
		ID:         id,
		Hash:       hash,
		Salt:       salt,
		Iterations: iterations,
		ClientID:   clientID,
		UserID:     userID,
		Scopes:     granted,
		ExpiresAt:  expiresAt,
	}, value, nil
}

// AccessTokenFactory mints access tokens.
type AccessTokenFactory struct {
	TTL        time.Duration
	Iterations int
}

// NewAccessTokenFactory creates a factory issuing tokens valid for ttl.
func NewAccessTokenFactory(ttl time.Duration) *AccessTokenFactory {
	return &AccessTokenFactory{TTL: ttl, Iterations: AccessTokenIterations}
}

// Create mints a new access token for the client/user pair with the given
// scopes, returning the entity paired with its one-time plaintext.
func (f *AccessTokenFactory) Create(clientID, userID string, scopes []string) (*Created[*AccessToken], error) {
	base, value, err := mint(AccessTokenValueLength, f.Iterations, f.TTL, clientID, userID, scopes)
	if err != nil {
		return nil, err
	}
	return &Created[*AccessToken]{Token: &AccessToken{Token: base}, Value: value}, nil
}

// AuthorizationCodeFactory mints authorization codes bound to the redirect
// URI presented at authorization time.
type AuthorizationCodeFactory struct {
	TTL        time.Duration
	Iterations int
}

// NewAuthorizationCodeFactory creates a factory issuing codes valid for ttl.
func NewAuthorizationCodeFactory(ttl time.Duration) *AuthorizationCodeFactory {
	return &AuthorizationCodeFactory{TTL: ttl, Iterations: AuthorizationCodeIterations}
}

// Create mints a new authorization code.
func (f *AuthorizationCodeFactory) Create(clientID, userID, redirectURI string, scopes []string) (*Created[*AuthorizationCode], error) {
	base, value, err := mint(AuthorizationCodeValueLength, f.Iterations, f.TTL, clientID, userID, scopes)
	if err != nil {
		return nil, err
	}
	return &Created[*AuthorizationCode]{
		Token: &AuthorizationCode{Token: base, RedirectURI: redirectURI},
		Value: value,
	}, nil
}

// RefreshTokenFactory mints refresh tokens. A zero TTL issues tokens that
// never expire.
type RefreshTokenFactory struct {
	TTL        time.Duration
	Iterations int
}

// NewRefreshTokenFactory creates a factory issuing refresh tokens valid for
// ttl; pass zero for non-expiring tokens.
func NewRefreshTokenFactory(ttl time.Duration) *RefreshTokenFactory {
	return &RefreshTokenFactory{TTL: ttl, Iterations: RefreshTokenIterations}
}

// Create mints a new refresh token.
func (f *RefreshTokenFactory) Create(clientID, userID string, scopes []string) (*Created[*RefreshToken], error) {
	base, value, err := mint(RefreshTokenValueLength, f.Iterations, f.TTL, clientID, userID, scopes)
	if err != nil {
		return nil, err
	}
	return &Created[*RefreshToken]{Token: &RefreshToken{Token: base}, Value: value}, nil
}
