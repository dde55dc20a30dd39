package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/grantkit/oauth/instrumentation"
	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/token"
)

// RefreshAccessToken runs the refresh_token grant. By default the
// presented refresh token is rotated: it is atomically redeemed and a
// replacement is issued alongside the new access token. With
// ReuseRefreshTokens the presented token stays valid and only a new access
// token is minted.
//
// Under rotation, presenting an already-redeemed refresh token is treated
// as token theft: the grant fails and every token issued to the
// user/client pair is revoked.
func (p *Provider) RefreshAccessToken(ctx context.Context, req *RefreshTokenRequest) (_ *TokenResponse, retErr error) {
	start := time.Now()
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "RefreshAccessToken")
	defer span.End()
	defer func() { retErr = p.finishError(retErr) }()
	defer func() {
		p.metrics.RecordGrantDuration(ctx, GrantTypeRefreshToken, float64(time.Since(start).Milliseconds()))
	}()

	if p.config.DisableRefreshTokens {
		err := ErrUnsupportedGrantType("refresh tokens are disabled")
		instrumentation.RecordError(span, err)
		return nil, err
	}
	if oerr := requireGrantType(req.GrantType, GrantTypeRefreshToken); oerr != nil {
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

	if req.RefreshToken == "" {
		err := ErrInvalidRequest("refresh_token is required")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	tokenID, err := token.ParseID(req.RefreshToken)
	if err != nil {
		oerr := ErrInvalidGrant("invalid refresh token")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	current, err := p.refreshTokens.GetRefreshToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			oerr := ErrInvalidGrant("invalid refresh token")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
		oerr := p.serverFault("failed to load refresh token", err)
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if !current.Matches(req.RefreshToken) {
		oerr := ErrInvalidGrant("invalid refresh token")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if current.ClientID != client.ID {
		oerr := ErrInvalidGrant("refresh token was issued to another client")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	scopes, oerr := p.narrowScopes(current.Scopes, req.Scope)
	if oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	rotate := !p.config.ReuseRefreshTokens

	if rotate {
		if _, err := p.refreshTokens.RedeemRefreshToken(ctx, tokenID); err != nil {
			switch {
			case errors.Is(err, storage.ErrAlreadyRedeemed):
				p.handleRefreshReuse(ctx, current)
				oerr := ErrInvalidGrant("refresh token already used")
				instrumentation.RecordError(span, oerr)
				return nil, oerr
			case errors.Is(err, storage.ErrExpired):
				oerr := ErrInvalidGrant("refresh token expired")
				instrumentation.RecordError(span, oerr)
				return nil, oerr
			case errors.Is(err, storage.ErrNotFound):
				oerr := ErrInvalidGrant("invalid refresh token")
				instrumentation.RecordError(span, oerr)
				return nil, oerr
			default:
				oerr := p.serverFault("failed to redeem refresh token", err)
				instrumentation.RecordError(span, oerr)
				return nil, oerr
			}
		}
		if p.config.DeleteRevokedTokens {
			if err := p.refreshTokens.DeleteRefreshToken(ctx, tokenID); err != nil {
				p.config.Logger.Warn("failed to delete rotated refresh token", "error", err)
			}
		}
	} else {
		if current.Revoked {
			p.handleRefreshReuse(ctx, current)
			oerr := ErrInvalidGrant("refresh token revoked")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
		if current.Expired() {
			oerr := ErrInvalidGrant("refresh token expired")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
	}

	// The refreshed grant supersedes the pair's prior access tokens.
	if _, err := p.revokeAccessTokensForPair(ctx, current.UserID, client.ID); err != nil {
		oerr := p.serverFault("failed to revoke prior access tokens", err)
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	access, err := p.accessFactory.Create(client.ID, current.UserID, scopes)
	if err != nil {
		oerr := p.serverFault("failed to mint access token", err)
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if err := p.accessTokens.SaveAccessToken(ctx, access.Token); err != nil {
		oerr := p.serverFault("failed to save access token", err)
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	resp := &TokenResponse{
		AccessToken: access.Value,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(p.config.AccessTokenTTL.Seconds()),
		Scope:       p.config.ScopeFormatter(scopes),
	}

	if rotate {
		replacement, err := p.refreshFactory.Create(client.ID, current.UserID, scopes)
		if err != nil {
			oerr := p.serverFault("failed to mint replacement refresh token", err)
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
		if err := p.refreshTokens.SaveRefreshToken(ctx, replacement.Token); err != nil {
			oerr := p.serverFault("failed to save replacement refresh token", err)
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
		resp.RefreshToken = replacement.Value
	} else {
		resp.RefreshToken = req.RefreshToken
	}

	span.SetAttributes(attribute.Bool(instrumentation.AttrTokenRotated, rotate))
	p.metrics.RecordTokenRefresh(ctx, client.ID, rotate)
	p.auditor.LogTokenRefreshed(current.UserID, client.ID, rotate)
	instrumentation.SetSpanOK(span)
	return resp, nil
}

// handleRefreshReuse revokes every token issued to the pair the replayed
// refresh token belongs to.
func (p *Provider) handleRefreshReuse(ctx context.Context, t *token.RefreshToken) {
	p.metrics.RecordReuseDetected(ctx, t.ClientID, "refresh_token")
	if p.allowSecurityEvent(t.ClientID, t.UserID) {
		p.auditor.LogReuseDetected(t.UserID, t.ClientID, "refresh_token")
	}

	revoked, err := p.revokeTokensForPair(ctx, t.UserID, t.ClientID)
	if err != nil {
		p.config.Logger.Error("failed to revoke tokens after refresh token reuse",
			"client_id", t.ClientID, "error", err)
		return
	}
	p.metrics.RecordTokenRevocation(ctx, t.ClientID, int64(revoked))
}

// narrowScopes resolves the scope of a refresh grant. An empty request
// inherits the original grant; anything else must be a subset of it.
func (p *Provider) narrowScopes(original []string, requested string) ([]string, *Error) {
	ids := p.config.ScopeParser(requested)
	if len(ids) == 0 {
		out := make([]string, len(original))
		copy(out, original)
		return out, nil
	}
	granted := make(map[string]bool, len(original))
	for _, s := range original {
		granted[s] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !granted[id] {
			return nil, ErrInvalidScope(fmt.Sprintf("scope %q exceeds the original grant", id))
		}
		out = append(out, id)
	}
	return out, nil
}
