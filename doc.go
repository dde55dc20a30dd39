// Package oauth implements the core of an OAuth 2.0 authorization server:
// the authorization code grant, the resource owner password credentials
// grant, and refresh token rotation, against pluggable storage.
//
// The package is transport-agnostic. It exposes operations taking request
// structs and returning response structs or *Error values; HTTP handlers,
// user authentication, and consent screens are the caller's concern.
// Issued values are random secrets with an embedded lookup ID, stored only
// as PBKDF2 hashes, so a storage leak exposes no usable credentials.
//
// A minimal setup:
//
//	store := memory.New(nil)
//	provider, err := oauth.New(oauth.Config{
//		Clients:       store,
//		Scopes:        store,
//		Codes:         store,
//		AccessTokens:  store,
//		RefreshTokens: store,
//	})
package oauth
