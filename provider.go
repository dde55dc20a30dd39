package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/grantkit/oauth/instrumentation"
	"github.com/grantkit/oauth/security"
	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/token"
)

// Provider is the authorization server engine. It implements the
// authorization code, password, and refresh token grants against the
// configured stores, leaving transport and user authentication to the
// caller.
type Provider struct {
	config Config

	clients       storage.ClientStore
	scopes        storage.ScopeStore
	codes         storage.AuthorizationCodeStore
	accessTokens  storage.AccessTokenStore
	refreshTokens storage.RefreshTokenStore

	codeFactory    *token.AuthorizationCodeFactory
	accessFactory  *token.AccessTokenFactory
	refreshFactory *token.RefreshTokenFactory

	auditor         *security.Auditor
	securityLimiter *security.RateLimiter
	instrumentation *instrumentation.Instrumentation
	metrics         *instrumentation.Metrics
}

// New creates a Provider from the config. Missing required stores fail
// fast; the engine cannot limp along without its persistence.
func New(config Config) (*Provider, error) {
	config.applyDefaults()

	if config.Clients == nil {
		return nil, fmt.Errorf("config.Clients is required")
	}
	if config.Scopes == nil {
		return nil, fmt.Errorf("config.Scopes is required")
	}
	if config.Codes == nil {
		return nil, fmt.Errorf("config.Codes is required")
	}
	if config.AccessTokens == nil {
		return nil, fmt.Errorf("config.AccessTokens is required")
	}
	if config.RefreshTokens == nil && !config.DisableRefreshTokens {
		return nil, fmt.Errorf("config.RefreshTokens is required unless refresh tokens are disabled")
	}

	inst := config.Instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	p := &Provider{
		config:        config,
		clients:       config.Clients,
		scopes:        config.Scopes,
		codes:         config.Codes,
		accessTokens:  config.AccessTokens,
		refreshTokens: config.RefreshTokens,

		codeFactory:    token.NewAuthorizationCodeFactory(config.AuthorizationCodeTTL),
		accessFactory:  token.NewAccessTokenFactory(config.AccessTokenTTL),
		refreshFactory: token.NewRefreshTokenFactory(config.RefreshTokenTTL),

		auditor: security.NewAuditor(config.Logger, config.AuditLogging),
		securityLimiter: security.NewRateLimiter(
			config.SecurityEventsPerSecond, config.SecurityEventBurst, config.Logger),
		instrumentation: inst,
		metrics:         inst.Metrics(),
	}
	return p, nil
}

// Close releases background resources.
func (p *Provider) Close() {
	p.securityLimiter.Stop()
}

// resolveClient authenticates a client by ID and secret. Unknown clients
// and wrong secrets produce the same invalid_client error, so callers
// cannot probe for registered IDs.
func (p *Provider) resolveClient(ctx context.Context, clientID, clientSecret string) (*storage.Client, *Error) {
	if clientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}

	client, err := p.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidClient("client authentication failed")
		}
		return nil, p.serverFault("failed to load client", err)
	}
	if !client.MatchesSecret(clientSecret) {
		p.metrics.RecordAuthFailure(ctx, clientID, "bad_secret")
		if p.allowSecurityEvent(clientID, "") {
			p.auditor.LogAuthFailure("", clientID, "client secret mismatch")
		}
		return nil, ErrInvalidClient("client authentication failed")
	}
	return client, nil
}

// authorizeClient authenticates a client for the authorization endpoint,
// whose error vocabulary uses unauthorized_client instead of
// invalid_client. Unknown clients and wrong secrets are reported alike.
func (p *Provider) authorizeClient(ctx context.Context, clientID, clientSecret string) (*storage.Client, *Error) {
	client, err := p.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorizedClient("client authentication failed")
		}
		return nil, p.serverFault("failed to load client", err)
	}
	if !client.MatchesSecret(clientSecret) {
		p.metrics.RecordAuthFailure(ctx, clientID, "bad_secret")
		if p.allowSecurityEvent(clientID, "") {
			p.auditor.LogAuthFailure("", clientID, "client secret mismatch")
		}
		return nil, ErrUnauthorizedClient("client authentication failed")
	}
	return client, nil
}

// resolveScopes parses a scope string and checks every entry against the
// scope store and the client's own restriction.
func (p *Provider) resolveScopes(ctx context.Context, client *storage.Client, scope string) ([]string, *Error) {
	requested := p.config.ScopeParser(scope)
	resolved := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, err := p.scopes.GetScope(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrInvalidScope(fmt.Sprintf("unknown scope %q", id))
			}
			return nil, p.serverFault("failed to load scope", err)
		}
		if !client.AllowsScope(id) {
			return nil, ErrInvalidScope(fmt.Sprintf("client may not request scope %q", id))
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

// ParseScope splits a scope request string on spaces, dropping empties.
func ParseScope(scope string) []string {
	if scope == "" {
		return nil
	}
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// FormatScope joins scope IDs into the wire representation.
func FormatScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// finishError applies the configured error description and URI delegates
// to protocol errors on their way out.
func (p *Provider) finishError(err error) error {
	if err == nil || (p.config.ErrorDescription == nil && p.config.ErrorURI == nil) {
		return err
	}
	var oe *Error
	if !errors.As(err, &oe) {
		return err
	}
	cp := *oe
	if p.config.ErrorDescription != nil {
		if d := p.config.ErrorDescription(cp.Code); d != "" {
			cp.Description = d
		}
	}
	if p.config.ErrorURI != nil {
		if u := p.config.ErrorURI(cp.Code); u != "" {
			cp.URI = u
		}
	}
	return &cp
}

// serverFault logs an internal failure and returns an opaque server_error.
func (p *Provider) serverFault(msg string, err error) *Error {
	p.config.Logger.Error(msg, "error", err)
	return ErrServerError("internal error").WithCause(err)
}

// allowSecurityEvent reports whether a security event for the pair is
// within its logging budget.
func (p *Provider) allowSecurityEvent(clientID, userID string) bool {
	return p.securityLimiter.Allow(clientID + ":" + userID)
}
