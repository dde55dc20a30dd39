package oauth

import (
	"context"
	"time"

	"github.com/grantkit/oauth/instrumentation"
)

// PasswordCredentialsToken runs the resource owner password credentials
// grant. The caller verifies the owner's credentials against its own
// identity system and passes the outcome in req.User; this engine never
// handles passwords. An unvalidated user fails the grant.
func (p *Provider) PasswordCredentialsToken(ctx context.Context, req *PasswordTokenRequest) (_ *TokenResponse, retErr error) {
	start := time.Now()
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "PasswordCredentialsToken")
	defer span.End()
	defer func() { retErr = p.finishError(retErr) }()
	defer func() {
		p.metrics.RecordGrantDuration(ctx, GrantTypePassword, float64(time.Since(start).Milliseconds()))
	}()

	if oerr := requireGrantType(req.GrantType, GrantTypePassword); oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	client, oerr := p.resolveClient(ctx, req.ClientID, req.ClientSecret)
	if oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	span.SetAttributes(
		instrumentation.StringAttr(instrumentation.AttrClientID, client.ID),
		instrumentation.StringAttr(instrumentation.AttrGrantType, req.GrantType),
	)

	if req.User.UserID == "" {
		err := ErrInvalidRequest("user is required")
		instrumentation.RecordError(span, err)
		return nil, err
	}
	if !req.User.Validated {
		p.metrics.RecordAuthFailure(ctx, client.ID, "unvalidated_user")
		if p.allowSecurityEvent(client.ID, req.User.UserID) {
			p.auditor.LogAuthFailure(req.User.UserID, client.ID, "resource owner credentials not validated")
		}
		err := ErrInvalidGrant("resource owner credentials were not validated")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	scopes, oerr := p.resolveScopes(ctx, client, req.Scope)
	if oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if len(scopes) == 0 {
		err := ErrInvalidScope("scope is required for this grant")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	// This grant supersedes everything the pair held before.
	revoked, err := p.revokeAccessTokensForPair(ctx, req.User.UserID, client.ID)
	if err != nil {
		serr := p.serverFault("failed to revoke prior access tokens", err)
		instrumentation.RecordError(span, serr)
		return nil, serr
	}
	n, err := p.revokeRefreshTokensForPair(ctx, req.User.UserID, client.ID)
	if err != nil {
		serr := p.serverFault("failed to revoke prior refresh tokens", err)
		instrumentation.RecordError(span, serr)
		return nil, serr
	}
	if revoked+n > 0 {
		p.metrics.RecordTokenRevocation(ctx, client.ID, int64(revoked+n))
	}

	resp, oerr := p.issueTokens(ctx, client.ID, req.User.UserID, scopes, GrantTypePassword)
	if oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	instrumentation.SetSpanOK(span)
	return resp, nil
}
