package oauth

import (
	"context"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/grantkit/oauth/internal/testutil"
)

func TestExchangeAuthorizationCode(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	code := authorize(t, p, testutil.ScopeID)
	resp := exchange(t, p, code.Code)

	if resp.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	if resp.TokenType != TokenTypeBearer {
		t.Errorf("TokenType = %q", resp.TokenType)
	}
	if resp.ExpiresIn != int64(DefaultAccessTokenTTL.Seconds()) {
		t.Errorf("ExpiresIn = %d", resp.ExpiresIn)
	}
	if resp.RefreshToken == "" {
		t.Error("expected a refresh token")
	}
	if resp.Scope != testutil.ScopeID {
		t.Errorf("Scope = %q", resp.Scope)
	}

	ok, err := p.VerifyAccessToken(context.Background(), resp.AccessToken, testutil.ScopeID)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if !ok {
		t.Error("issued access token should grant its scope")
	}
}

func TestExchangeWithoutRefreshTokens(t *testing.T) {
	p, _ := newTestProvider(t, func(c *Config) { c.DisableRefreshTokens = true })

	code := authorize(t, p, testutil.ScopeID)
	resp := exchange(t, p, code.Code)

	if resp.RefreshToken != "" {
		t.Error("refresh tokens are disabled; none should be issued")
	}
}

func TestExchangeGrantTypeValidation(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()
	code := authorize(t, p, testutil.ScopeID)

	_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
		GrantType:    GrantTypePassword,
		Code:         code.Code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeUnsupportedGrantType)

	_, err = p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
		Code:         code.Code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeInvalidRequest)
}

func TestExchangeRejectsBadClientSecret(t *testing.T) {
	p, store := newTestProvider(t, nil)
	ctx := context.Background()
	code := authorize(t, p, testutil.ScopeID)

	_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code.Code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: "wrong",
	})
	assertOAuthError(t, err, ErrorCodeInvalidClient)

	// No token may be persisted for a failed exchange.
	tokens, err := store.AccessTokensByUserClient(ctx, testutil.UserID, testutil.ClientID)
	if err != nil {
		t.Fatalf("AccessTokensByUserClient() error = %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("found %d access tokens after failed exchange", len(tokens))
	}
}

func TestExchangeRequiresRedirectURI(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()
	code := authorize(t, p, testutil.ScopeID)

	_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code.Code,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeInvalidRequest)

	// The shape failure happens before redemption; the code is still live.
	exchange(t, p, code.Code)
}

func TestExchangeRejectsWrongRedirectURI(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	code := authorize(t, p, testutil.ScopeID)

	_, err := p.ExchangeAuthorizationCode(context.Background(), &AccessTokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code.Code,
		RedirectURI:  "https://client.example.com/other",
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestExchangeRejectsForeignCode(t *testing.T) {
	p, store := newTestProvider(t, nil)
	ctx := context.Background()

	other := testutil.NewClient(t)
	other.ID = "other-client"
	if err := store.SaveClient(ctx, other); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	code := authorize(t, p, testutil.ScopeID)

	_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code.Code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     "other-client",
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestExchangeRejectsGarbageCode(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	for _, code := range []string{"not-a-real-code", "missing.id", ""} {
		_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
			GrantType:    GrantTypeAuthorizationCode,
			Code:         code,
			RedirectURI:  testutil.RedirectURI,
			ClientID:     testutil.ClientID,
			ClientSecret: testutil.ClientSecret,
		})
		if code == "" {
			assertOAuthError(t, err, ErrorCodeInvalidRequest)
		} else {
			assertOAuthError(t, err, ErrorCodeInvalidGrant)
		}
	}
}

func TestExchangeReplayRevokesIssuedTokens(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	code := authorize(t, p, testutil.ScopeID)
	resp := exchange(t, p, code.Code)

	// Replaying the code fails and burns everything it produced.
	_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code.Code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)

	ok, err := p.VerifyAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if ok {
		t.Error("access token must be revoked after code replay")
	}

	_, err = p.RefreshAccessToken(ctx, &RefreshTokenRequest{
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: resp.RefreshToken,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestExchangeConcurrentRedeemsOnce(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()

	code := authorize(t, p, testutil.ScopeID)

	var wins atomic.Int32
	g := new(errgroup.Group)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := p.ExchangeAuthorizationCode(ctx, &AccessTokenRequest{
				GrantType:    GrantTypeAuthorizationCode,
				Code:         code.Code,
				RedirectURI:  testutil.RedirectURI,
				ClientID:     testutil.ClientID,
				ClientSecret: testutil.ClientSecret,
			})
			if err == nil {
				wins.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if wins.Load() != 1 {
		t.Errorf("%d exchanges succeeded, want exactly 1", wins.Load())
	}
}
