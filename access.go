package oauth

import (
	"context"
	"errors"

	"github.com/grantkit/oauth/instrumentation"
	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/token"
)

// HasAccess reports whether the user/client pair holds a valid access
// token granting the scope. Consent screens use this to skip re-prompting
// an owner who already granted the client the same access. An empty scope
// asks only for any valid token.
func (p *Provider) HasAccess(ctx context.Context, userID, clientID, scopeID string) (bool, error) {
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "HasAccess")
	defer span.End()
	span.SetAttributes(
		instrumentation.StringAttr(instrumentation.AttrClientID, clientID),
		instrumentation.StringAttr(instrumentation.AttrScope, scopeID),
	)

	tokens, err := p.accessTokens.AccessTokensByUserClient(ctx, userID, clientID)
	if err != nil {
		instrumentation.RecordError(span, err)
		return false, p.serverFault("failed to list access tokens", err)
	}
	for _, t := range tokens {
		if !t.Valid() {
			continue
		}
		if scopeID == "" || t.HasScope(scopeID) {
			instrumentation.SetSpanOK(span)
			return true, nil
		}
	}
	return false, nil
}

// VerifyAccessToken reports whether the presented access token value is
// valid and was granted every one of the required scopes. Resource servers
// use this to authorize bearer requests. An invalid, expired, revoked, or
// unknown token yields false without error; errors are reserved for
// storage faults.
func (p *Provider) VerifyAccessToken(ctx context.Context, tokenValue string, requiredScopes ...string) (bool, error) {
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "VerifyAccessToken")
	defer span.End()

	id, err := token.ParseID(tokenValue)
	if err != nil {
		return false, nil
	}

	t, err := p.accessTokens.GetAccessToken(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		instrumentation.RecordError(span, err)
		return false, p.serverFault("failed to load access token", err)
	}

	if !t.Matches(tokenValue) || !t.Valid() {
		return false, nil
	}
	for _, scope := range requiredScopes {
		if !t.HasScope(scope) {
			return false, nil
		}
	}
	instrumentation.SetSpanOK(span)
	return true, nil
}

// RevokeAccess revokes every authorization code, access token, and refresh
// token issued to the user/client pair, returning how many artifacts were
// revoked. Used for user-initiated disconnects and by the replay cascade.
func (p *Provider) RevokeAccess(ctx context.Context, userID, clientID string) (int, error) {
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "RevokeAccess")
	defer span.End()
	span.SetAttributes(instrumentation.StringAttr(instrumentation.AttrClientID, clientID))

	revoked, err := p.revokeTokensForPair(ctx, userID, clientID)
	if err != nil {
		instrumentation.RecordError(span, err)
		return revoked, p.serverFault("failed to revoke access", err)
	}

	p.metrics.RecordTokenRevocation(ctx, clientID, int64(revoked))
	p.auditor.LogAccessRevoked(userID, clientID, revoked)
	instrumentation.SetSpanOK(span)
	return revoked, nil
}

// revokeTokensForPair revokes or deletes every artifact issued to the
// pair. Revocation marks entities in place so replayed values stay
// detectable; with DeleteRevokedTokens set they are removed instead.
func (p *Provider) revokeTokensForPair(ctx context.Context, userID, clientID string) (int, error) {
	revoked, err := p.revokeCodesForPair(ctx, userID, clientID)
	if err != nil {
		return revoked, err
	}

	n, err := p.revokeAccessTokensForPair(ctx, userID, clientID)
	revoked += n
	if err != nil {
		return revoked, err
	}

	n, err = p.revokeRefreshTokensForPair(ctx, userID, clientID)
	revoked += n
	return revoked, err
}

// revokeCodesForPair kills every live authorization code for the pair.
// Also run before issuing a new code, so at most one code per pair is live.
func (p *Provider) revokeCodesForPair(ctx context.Context, userID, clientID string) (int, error) {
	codes, err := p.codes.CodesByUserClient(ctx, userID, clientID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, c := range codes {
		if c.Revoked {
			continue
		}
		if p.config.DeleteRevokedTokens {
			err = p.codes.DeleteCode(ctx, c.ID)
		} else {
			c.Revoke()
			err = p.codes.SaveCode(ctx, c)
		}
		if err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// revokeAccessTokensForPair kills every live access token for the pair.
// Run by the password and refresh grants, which supersede prior access.
func (p *Provider) revokeAccessTokensForPair(ctx context.Context, userID, clientID string) (int, error) {
	tokens, err := p.accessTokens.AccessTokensByUserClient(ctx, userID, clientID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, t := range tokens {
		if t.Revoked {
			continue
		}
		if p.config.DeleteRevokedTokens {
			err = p.accessTokens.DeleteAccessToken(ctx, t.ID)
		} else {
			t.Revoke()
			err = p.accessTokens.SaveAccessToken(ctx, t)
		}
		if err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

func (p *Provider) revokeRefreshTokensForPair(ctx context.Context, userID, clientID string) (int, error) {
	if p.refreshTokens == nil {
		return 0, nil
	}
	tokens, err := p.refreshTokens.RefreshTokensByUserClient(ctx, userID, clientID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, t := range tokens {
		if t.Revoked {
			continue
		}
		if p.config.DeleteRevokedTokens {
			err = p.refreshTokens.DeleteRefreshToken(ctx, t.ID)
		} else {
			t.Revoke()
			err = p.refreshTokens.SaveRefreshToken(ctx, t)
		}
		if err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}
