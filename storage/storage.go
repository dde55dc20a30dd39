// Package storage defines the repository interfaces the provider engine
// depends on, together with the client, scope, and user reference
// entities. Implementations (see the memory and redis subpackages) must be
// safe for concurrent use: Redeem operations in particular are the
// engine's at-most-once synchronization points and must check validity and
// mark revocation atomically.
package storage

import (
	"context"
	"errors"

	"github.com/grantkit/oauth/token"
)

// Sentinel errors returned by stores. Use errors.Is to match; backends
// wrap them with backend-specific context.
var (
	// ErrNotFound indicates the requested entity does not exist (or has
	// expired out of a TTL-based backend).
	ErrNotFound = errors.New("storage: not found")

	// ErrExpired indicates a redeem attempt on an expired artifact.
	ErrExpired = errors.New("storage: expired")

	// ErrAlreadyRedeemed indicates a redeem attempt on an artifact that was
	// already redeemed. The engine treats this as a replay signal.
	ErrAlreadyRedeemed = errors.New("storage: already redeemed")
)

// ClientStore resolves registered OAuth clients. Clients are created and
// managed outside the engine; the engine only reads them.
type ClientStore interface {
	// GetClient retrieves a client by its client_id. Returns ErrNotFound
	// for unknown clients.
	GetClient(ctx context.Context, clientID string) (*Client, error)
}

// ScopeStore resolves the scopes this server can grant.
type ScopeStore interface {
	// GetScope retrieves a scope by ID. Returns ErrNotFound for unknown
	// scopes.
	GetScope(ctx context.Context, id string) (*Scope, error)

	// ListScopes returns every known scope.
	ListScopes(ctx context.Context) ([]*Scope, error)
}

// AuthorizationCodeStore persists authorization codes, keyed by token ID.
// Stores never see plaintext code values; the engine extracts the embedded
// ID before lookup and confirms the hash afterwards.
type AuthorizationCodeStore interface {
	// SaveCode inserts or updates a code.
	SaveCode(ctx context.Context, code *token.AuthorizationCode) error

	// GetCode retrieves a code by ID. Returns ErrNotFound when absent.
	GetCode(ctx context.Context, id string) (*token.AuthorizationCode, error)

	// RedeemCode atomically validates and revokes the code in a single
	// step, returning its pre-redemption state. Exactly one concurrent
	// caller can succeed for a given ID; later callers get
	// ErrAlreadyRedeemed. Expired codes yield ErrExpired.
	RedeemCode(ctx context.Context, id string) (*token.AuthorizationCode, error)

	// CodesByUserClient returns all stored codes for a user/client pair.
	CodesByUserClient(ctx context.Context, userID, clientID string) ([]*token.AuthorizationCode, error)

	// DeleteCode removes a code. Deleting an absent code is not an error.
	DeleteCode(ctx context.Context, id string) error
}

// AccessTokenStore persists access tokens, keyed by token ID.
type AccessTokenStore interface {
	SaveAccessToken(ctx context.Context, t *token.AccessToken) error
	GetAccessToken(ctx context.Context, id string) (*token.AccessToken, error)
	AccessTokensByUserClient(ctx context.Context, userID, clientID string) ([]*token.AccessToken, error)
	DeleteAccessToken(ctx context.Context, id string) error
}

// RefreshTokenStore persists refresh tokens, keyed by token ID. Redeem has
// the same atomicity contract as AuthorizationCodeStore.RedeemCode and is
// used by the rotation policy.
type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, t *token.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (*token.RefreshToken, error)
	RedeemRefreshToken(ctx context.Context, id string) (*token.RefreshToken, error)
	RefreshTokensByUserClient(ctx context.Context, userID, clientID string) ([]*token.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
}
