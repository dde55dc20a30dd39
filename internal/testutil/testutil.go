// Package testutil provides shared fixtures for store and provider tests.
package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/storage/memory"
)

// Canonical fixture identifiers.
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	RedirectURI  = "https://client.example.com/callback"
	UserID       = "user-1"
	ScopeID      = "profile"
	ScopeIDExtra = "email"
)

// NewClient builds a registered client with the canonical fixture values.
func NewClient(t *testing.T) *storage.Client {
	t.Helper()
	hash, err := storage.HashClientSecret(ClientSecret)
	require.NoError(t, err)
	return &storage.Client{
		ID:           ClientID,
		SecretHash:   hash,
		RedirectURIs: []string{RedirectURI},
		Name:         "Test Client",
	}
}

// NewStore builds a memory store seeded with the canonical client and
// scopes, and stops its cleanup loop when the test ends.
func NewStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New(slog.Default())
	t.Cleanup(store.Stop)

	ctx := context.Background()
	require.NoError(t, store.SaveClient(ctx, NewClient(t)))
	require.NoError(t, store.SaveScope(ctx, &storage.Scope{ID: ScopeID, Description: "Basic profile"}))
	require.NoError(t, store.SaveScope(ctx, &storage.Scope{ID: ScopeIDExtra, Description: "Email address"}))
	return store
}
