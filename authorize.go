package oauth

import (
	"context"

	"github.com/grantkit/oauth/instrumentation"
)

// RequestAuthorizationCode runs the authorization half of the code flow.
// The caller has already authenticated the resource owner and obtained
// consent; this issues the code that the client later exchanges.
//
// Errors before the redirect URI is validated must be shown to the user
// directly and carry no state. Once the client and redirect URI check out,
// errors carry the request state and may be delivered by error redirect.
func (p *Provider) RequestAuthorizationCode(ctx context.Context, req *AuthorizationCodeRequest) (_ *AuthorizationCodeResponse, retErr error) {
	ctx, span := p.instrumentation.Tracer("provider").Start(ctx, "RequestAuthorizationCode")
	defer span.End()
	defer func() { retErr = p.finishError(retErr) }()

	// Shape errors carry no state; a malformed request may not have one.
	if req.ClientID == "" || req.ClientSecret == "" || req.Scope == "" || req.RedirectURI == "" {
		err := ErrInvalidRequest("client_id, client_secret, scope and redirect_uri are required")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	client, oerr := p.authorizeClient(ctx, req.ClientID, req.ClientSecret)
	if oerr != nil {
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	// The redirect URI gates error delivery. An unregistered URI must
	// never receive a redirect, not even an error one.
	if !client.IsValidRedirectURI(req.RedirectURI) {
		err := ErrInvalidRequest("redirect_uri is not registered for this client")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		instrumentation.StringAttr(instrumentation.AttrClientID, req.ClientID),
		instrumentation.StringAttr(instrumentation.AttrResponseType, req.ResponseType),
		instrumentation.StringAttr(instrumentation.AttrRedirectURI, req.RedirectURI),
		instrumentation.StringAttr(instrumentation.AttrUserID, req.UserID),
	)

	if req.ResponseType != ResponseTypeCode {
		err := ErrUnsupportedResponseType("only the \"code\" response type is supported").WithState(req.State)
		instrumentation.RecordError(span, err)
		return nil, err
	}
	if req.UserID == "" {
		err := ErrAccessDenied("no authenticated resource owner").WithState(req.State)
		instrumentation.RecordError(span, err)
		return nil, err
	}

	scopes, oerr := p.resolveScopes(ctx, client, req.Scope)
	if oerr != nil {
		oerr = oerr.WithState(req.State)
		instrumentation.RecordError(span, oerr)
		return nil, oerr
	}

	// At most one live code per pair; a new request supersedes any code
	// the client has not exchanged yet.
	if _, err := p.revokeCodesForPair(ctx, req.UserID, client.ID); err != nil {
		serr := p.serverFault("failed to revoke prior authorization codes", err).WithState(req.State)
		instrumentation.RecordError(span, serr)
		return nil, serr
	}

	created, err := p.codeFactory.Create(client.ID, req.UserID, req.RedirectURI, scopes)
	if err != nil {
		serr := p.serverFault("failed to mint authorization code", err).WithState(req.State)
		instrumentation.RecordError(span, serr)
		return nil, serr
	}
	if err := p.codes.SaveCode(ctx, created.Token); err != nil {
		serr := p.serverFault("failed to save authorization code", err).WithState(req.State)
		instrumentation.RecordError(span, serr)
		return nil, serr
	}

	p.metrics.RecordCodeIssued(ctx, client.ID)
	p.auditor.LogCodeIssued(req.UserID, client.ID, p.config.ScopeFormatter(scopes))
	instrumentation.SetSpanOK(span)

	return &AuthorizationCodeResponse{
		Code:        created.Value,
		State:       req.State,
		RedirectURI: req.RedirectURI,
	}, nil
}
