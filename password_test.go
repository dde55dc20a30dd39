package oauth

import (
	"context"
	"testing"

	"github.com/grantkit/oauth/internal/testutil"
)

func passwordRequest() *PasswordTokenRequest {
	return &PasswordTokenRequest{
		GrantType:    GrantTypePassword,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
		Scope:        testutil.ScopeID,
		User:         ValidatedUser{UserID: testutil.UserID, Validated: true},
	}
}

func TestPasswordCredentialsToken(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	resp, err := p.PasswordCredentialsToken(ctx, passwordRequest())
	if err != nil {
		t.Fatalf("PasswordCredentialsToken() error = %v", err)
	}

	if resp.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	if resp.RefreshToken == "" {
		t.Error("expected a refresh token")
	}
	if resp.TokenType != TokenTypeBearer {
		t.Errorf("TokenType = %q", resp.TokenType)
	}
	if resp.Scope != testutil.ScopeID {
		t.Errorf("Scope = %q", resp.Scope)
	}

	ok, err := p.VerifyAccessToken(ctx, resp.AccessToken, testutil.ScopeID)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if !ok {
		t.Error("issued token should grant its scope")
	}
}

func TestPasswordCredentialsTokenErrors(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(*PasswordTokenRequest)
		wantCode string
	}{
		{
			name:     "wrong grant type",
			mutate:   func(r *PasswordTokenRequest) { r.GrantType = GrantTypeAuthorizationCode },
			wantCode: ErrorCodeUnsupportedGrantType,
		},
		{
			name:     "missing grant type",
			mutate:   func(r *PasswordTokenRequest) { r.GrantType = "" },
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name:     "unknown client",
			mutate:   func(r *PasswordTokenRequest) { r.ClientID = "nobody" },
			wantCode: ErrorCodeInvalidClient,
		},
		{
			name:     "wrong secret",
			mutate:   func(r *PasswordTokenRequest) { r.ClientSecret = "wrong" },
			wantCode: ErrorCodeInvalidClient,
		},
		{
			name:     "missing user",
			mutate:   func(r *PasswordTokenRequest) { r.User = ValidatedUser{} },
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name:     "unvalidated user",
			mutate:   func(r *PasswordTokenRequest) { r.User.Validated = false },
			wantCode: ErrorCodeInvalidGrant,
		},
		{
			name:     "unknown scope",
			mutate:   func(r *PasswordTokenRequest) { r.Scope = "admin" },
			wantCode: ErrorCodeInvalidScope,
		},
		{
			name:     "empty scope",
			mutate:   func(r *PasswordTokenRequest) { r.Scope = "" },
			wantCode: ErrorCodeInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := passwordRequest()
			tt.mutate(req)
			_, err := p.PasswordCredentialsToken(ctx, req)
			assertOAuthError(t, err, tt.wantCode)
		})
	}
}

func TestPasswordGrantSupersedesPriorTokens(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	first, err := p.PasswordCredentialsToken(ctx, passwordRequest())
	if err != nil {
		t.Fatalf("first grant error = %v", err)
	}
	second, err := p.PasswordCredentialsToken(ctx, passwordRequest())
	if err != nil {
		t.Fatalf("second grant error = %v", err)
	}

	ok, err := p.VerifyAccessToken(ctx, second.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if !ok {
		t.Error("second access token should be valid")
	}

	ok, err = p.VerifyAccessToken(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if ok {
		t.Error("first access token must be revoked by the second grant")
	}

	_, err = p.RefreshAccessToken(ctx, refreshRequest(first.RefreshToken))
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestPasswordGrantWithoutRefreshTokens(t *testing.T) {
	p, _ := newTestProvider(t, func(c *Config) { c.DisableRefreshTokens = true })

	resp, err := p.PasswordCredentialsToken(context.Background(), passwordRequest())
	if err != nil {
		t.Fatalf("PasswordCredentialsToken() error = %v", err)
	}
	if resp.RefreshToken != "" {
		t.Error("refresh tokens are disabled; none should be issued")
	}
}
