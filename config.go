package oauth

import (
	"log/slog"
	"time"

	"github.com/grantkit/oauth/instrumentation"
	"github.com/grantkit/oauth/storage"
)

// Default artifact lifetimes.
const (
	DefaultAuthorizationCodeTTL = 5 * time.Minute
	DefaultAccessTokenTTL       = time.Hour

	// DefaultRefreshTokenTTL of zero issues refresh tokens that never
	// expire; rotation bounds their useful life instead.
	DefaultRefreshTokenTTL = 0
)

// Default budget for security-event logging per (user, client) pair.
const (
	DefaultSecurityEventsPerSecond = 1
	DefaultSecurityEventBurst      = 5
)

// Config configures a Provider. Stores are required; everything else has a
// usable default.
type Config struct {
	// Clients resolves registered clients. Required.
	Clients storage.ClientStore

	// Scopes resolves grantable scopes. Required.
	Scopes storage.ScopeStore

	// Codes persists authorization codes. Required.
	Codes storage.AuthorizationCodeStore

	// AccessTokens persists access tokens. Required.
	AccessTokens storage.AccessTokenStore

	// RefreshTokens persists refresh tokens. Required unless
	// DisableRefreshTokens is set.
	RefreshTokens storage.RefreshTokenStore

	// AuthorizationCodeTTL bounds how long an issued code can be exchanged.
	// Defaults to 5 minutes.
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL bounds access token validity. Defaults to 1 hour.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL bounds refresh token validity. Zero, the default,
	// issues tokens that never expire.
	RefreshTokenTTL time.Duration

	// DisableRefreshTokens stops the provider from issuing refresh tokens
	// on any grant.
	DisableRefreshTokens bool

	// ReuseRefreshTokens keeps the presented refresh token valid across
	// refresh grants instead of rotating it. Rotation is the default;
	// reuse trades replay detection for client simplicity.
	ReuseRefreshTokens bool

	// DeleteRevokedTokens removes revoked entities from storage instead of
	// keeping them as tombstones. Tombstones enable reuse detection, so
	// deletion also disables the revoke-on-replay cascade for deleted
	// artifacts.
	DeleteRevokedTokens bool

	// AuditLogging enables structured audit events for token lifecycle
	// operations.
	AuditLogging bool

	// SecurityEventsPerSecond and SecurityEventBurst bound how often
	// security events (replay detection, auth failures) are logged per
	// (user, client) pair.
	SecurityEventsPerSecond int
	SecurityEventBurst      int

	// ScopeParser splits a requested scope string into scope IDs.
	// Defaults to ParseScope (space-separated per RFC 6749 §3.3).
	ScopeParser func(scope string) []string

	// ScopeFormatter renders granted scope IDs into the wire form.
	// Defaults to FormatScope.
	ScopeFormatter func(scopes []string) string

	// ErrorDescription, when set, replaces the description of protocol
	// errors by code. Returning "" keeps the built-in description.
	ErrorDescription func(code string) string

	// ErrorURI, when set, supplies the error_uri for protocol errors.
	ErrorURI func(code string) string

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation provides metrics and tracing. Optional; when nil a
	// disabled instance with no-op providers is created.
	Instrumentation *instrumentation.Instrumentation
}

func (c *Config) applyDefaults() {
	if c.AuthorizationCodeTTL == 0 {
		c.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.SecurityEventsPerSecond == 0 {
		c.SecurityEventsPerSecond = DefaultSecurityEventsPerSecond
	}
	if c.SecurityEventBurst == 0 {
		c.SecurityEventBurst = DefaultSecurityEventBurst
	}
	if c.ScopeParser == nil {
		c.ScopeParser = ParseScope
	}
	if c.ScopeFormatter == nil {
		c.ScopeFormatter = FormatScope
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
