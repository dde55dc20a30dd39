package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/grantkit/oauth/instrumentation"
	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/token"
)

// ExchangeAuthorizationCode runs the token half of the code flow: the
// client authenticates, presents the code, and receives an access token
// plus, unless disabled, a refresh token.
//
// A code redeems at most once. Presenting an already-redeemed code is
// treated as evidence of code theft: the exchange fails and every token
// previously issued to that user/client pair is revoked.
func (p *Provider) ExchangeAuthorizationCode(ctx context.Context, req *AccessTokenRequest) (_ *TokenResponse, retErr error) {
	start := time.Now()
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "ExchangeAuthorizationCode")
	defer span.End()
	defer func() { retErr = p.finishError(retErr) }()
	defer func() {
		p.metrics.RecordGrantDuration(ctx, GrantTypeAuthorizationCode, float64(time.Since(start).Milliseconds()))
	}()

	if oerr := requireGrantType(req.GrantType, GrantTypeAuthorizationCode); oerr != nil {
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

	if req.Code == "" || req.RedirectURI == "" {
		err := ErrInvalidRequest("code and redirect_uri are required")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	codeID, err := token.ParseID(req.Code)
	if err != nil {
		oerr := ErrInvalidGrant("invalid authorization code")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	// Validate against the stored entity before redeeming, so a request
	// with the right ID but the wrong secret cannot burn the real code.
	code, err := p.codes.GetCode(ctx, codeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			oerr := ErrInvalidGrant("invalid authorization code")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
		oerr := p.serverFault("failed to load authorization code", err)
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if !code.Matches(req.Code) {
		oerr := ErrInvalidGrant("invalid authorization code")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if code.ClientID != client.ID {
		oerr := ErrInvalidGrant("authorization code was issued to another client")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}
	if code.RedirectURI != req.RedirectURI {
		oerr := ErrInvalidGrant("redirect_uri does not match the authorization request")
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	redeemed, err := p.codes.RedeemCode(ctx, codeID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyRedeemed):
			p.handleCodeReuse(ctx, code)
			oerr := ErrInvalidGrant("authorization code already redeemed")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		case errors.Is(err, storage.ErrExpired):
			oerr := ErrInvalidGrant("authorization code expired")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		case errors.Is(err, storage.ErrNotFound):
			oerr := ErrInvalidGrant("invalid authorization code")
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		default:
			oerr := p.serverFault("failed to redeem authorization code", err)
			instrumentation.RecordError(span, oerr)
			return nil, oerr
		}
	}

	if p.config.DeleteRevokedTokens {
		if err := p.codes.DeleteCode(ctx, codeID); err != nil {
			p.config.Logger.Warn("failed to delete redeemed code", "error", err)
		}
	}

	resp, oerr := p.issueTokens(ctx, client.ID, redeemed.UserID, redeemed.Scopes, GrantTypeAuthorizationCode)
	if oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	p.metrics.RecordCodeExchange(ctx, client.ID)
	instrumentation.SetSpanOK(span)
	return resp, nil
}

// handleCodeReuse revokes every token issued to the pair the stolen code
// belongs to. Whichever party redeemed the code first, the grant is
// considered compromised.
func (p *Provider) handleCodeReuse(ctx context.Context, code *token.AuthorizationCode) {
	p.metrics.RecordReuseDetected(ctx, code.ClientID, "authorization_code")
	if p.allowSecurityEvent(code.ClientID, code.UserID) {
		p.auditor.LogReuseDetected(code.UserID, code.ClientID, "authorization_code")
	}

	revoked, err := p.revokeTokensForPair(ctx, code.UserID, code.ClientID)
	if err != nil {
		p.config.Logger.Error("failed to revoke tokens after code reuse",
			"client_id", code.ClientID, "error", err)
		return
	}
	p.metrics.RecordTokenRevocation(ctx, code.ClientID, int64(revoked))
}

// issueTokens mints and persists an access token, and a refresh token
// unless disabled, returning the wire response.
func (p *Provider) issueTokens(ctx context.Context, clientID, userID string, scopes []string, grantType string) (*TokenResponse, *Error) {
	access, err := p.accessFactory.Create(clientID, userID, scopes)
	if err != nil {
		return nil, p.serverFault("failed to mint access token", err)
	}
	if err := p.accessTokens.SaveAccessToken(ctx, access.Token); err != nil {
		return nil, p.serverFault("failed to save access token", err)
	}

	resp := &TokenResponse{
		AccessToken: access.Value,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(p.config.AccessTokenTTL.Seconds()),
		Scope:       p.config.ScopeFormatter(scopes),
	}

	if !p.config.DisableRefreshTokens {
		refresh, err := p.refreshFactory.Create(clientID, userID, scopes)
		if err != nil {
			return nil, p.serverFault("failed to mint refresh token", err)
		}
		if err := p.refreshTokens.SaveRefreshToken(ctx, refresh.Token); err != nil {
			return nil, p.serverFault("failed to save refresh token", err)
		}
		resp.RefreshToken = refresh.Value
	}

	p.metrics.RecordTokensIssued(ctx, clientID, grantType)
	p.auditor.LogTokenIssued(userID, clientID, grantType, resp.Scope)
	return resp, nil
}

// requireGrantType validates the grant_type parameter of a token request.
func requireGrantType(got, want string) *Error {
	if got == "" {
		return ErrInvalidRequest("grant_type is required")
	}
	if got != want {
		return ErrUnsupportedGrantType("grant type \"" + got + "\" is not supported by this operation")
	}
	return nil
}
