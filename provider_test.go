package oauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/grantkit/oauth/internal/testutil"
	"github.com/grantkit/oauth/storage/memory"
)

// newTestProvider builds a provider over a seeded memory store. mutate may
// adjust the config before construction.
func newTestProvider(t *testing.T, mutate func(*Config)) (*Provider, *memory.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	cfg := Config{
		Clients:       store,
		Scopes:        store,
		Codes:         store,
		AccessTokens:  store,
		RefreshTokens: store,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(p.Close)
	return p, store
}

// authorize issues a code for the canonical fixture pair.
func authorize(t *testing.T, p *Provider, scope string) *AuthorizationCodeResponse {
	t.Helper()
	resp, err := p.RequestAuthorizationCode(context.Background(), &AuthorizationCodeRequest{
		ResponseType: ResponseTypeCode,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
		RedirectURI:  testutil.RedirectURI,
		Scope:        scope,
		State:        "xyz",
		UserID:       testutil.UserID,
	})
	if err != nil {
		t.Fatalf("RequestAuthorizationCode() error = %v", err)
	}
	return resp
}

// exchange swaps a code for tokens with the canonical client credentials.
func exchange(t *testing.T, p *Provider, code string) *TokenResponse {
	t.Helper()
	resp, err := p.ExchangeAuthorizationCode(context.Background(), &AccessTokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
	})
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error = %v", err)
	}
	return resp
}

// assertOAuthError fails unless err is an *Error with the given code.
func assertOAuthError(t *testing.T, err error, code string) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	oe := AsError(err)
	if oe.Code != code {
		t.Fatalf("error code = %q, want %q (err: %v)", oe.Code, code, err)
	}
	return oe
}

func TestNewRequiresStores(t *testing.T) {
	store := testutil.NewStore(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing clients", func(c *Config) { c.Clients = nil }},
		{"missing scopes", func(c *Config) { c.Scopes = nil }},
		{"missing codes", func(c *Config) { c.Codes = nil }},
		{"missing access tokens", func(c *Config) { c.AccessTokens = nil }},
		{"missing refresh tokens", func(c *Config) { c.RefreshTokens = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Clients:       store,
				Scopes:        store,
				Codes:         store,
				AccessTokens:  store,
				RefreshTokens: store,
			}
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() should fail without required store")
			}
		})
	}
}

func TestNewAllowsMissingRefreshStoreWhenDisabled(t *testing.T) {
	store := testutil.NewStore(t)
	p, err := New(Config{
		Clients:              store,
		Scopes:               store,
		Codes:                store,
		AccessTokens:         store,
		DisableRefreshTokens: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	p.Close()
	p.Close()
}

func TestNewAppliesDefaults(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	if p.config.AuthorizationCodeTTL != DefaultAuthorizationCodeTTL {
		t.Errorf("AuthorizationCodeTTL = %v", p.config.AuthorizationCodeTTL)
	}
	if p.config.AccessTokenTTL != DefaultAccessTokenTTL {
		t.Errorf("AccessTokenTTL = %v", p.config.AccessTokenTTL)
	}
	if p.config.RefreshTokenTTL != 0 {
		t.Errorf("RefreshTokenTTL = %v, want 0", p.config.RefreshTokenTTL)
	}
	if p.config.Logger == nil {
		t.Error("Logger default not applied")
	}
}

func TestConfigDelegates(t *testing.T) {
	p, _ := newTestProvider(t, func(c *Config) {
		c.ScopeParser = func(s string) []string {
			if s == "" {
				return nil
			}
			return strings.Split(s, ",")
		}
		c.ScopeFormatter = func(scopes []string) string { return strings.Join(scopes, ",") }
		c.ErrorURI = func(code string) string { return "https://errors.example.com/" + code }
	})
	ctx := context.Background()

	req := passwordRequest()
	req.Scope = testutil.ScopeID + "," + testutil.ScopeIDExtra
	resp, err := p.PasswordCredentialsToken(ctx, req)
	if err != nil {
		t.Fatalf("PasswordCredentialsToken() error = %v", err)
	}
	if resp.Scope != testutil.ScopeID+","+testutil.ScopeIDExtra {
		t.Errorf("Scope = %q, want comma-formatted scopes", resp.Scope)
	}

	bad := passwordRequest()
	bad.ClientSecret = "wrong"
	_, err = p.PasswordCredentialsToken(ctx, bad)
	oe := assertOAuthError(t, err, ErrorCodeInvalidClient)
	if oe.URI != "https://errors.example.com/"+ErrorCodeInvalidClient {
		t.Errorf("URI = %q, want delegate-supplied error_uri", oe.URI)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"profile", 1},
		{"profile email", 2},
		{"  profile   email  ", 2},
	}
	for _, tt := range tests {
		if got := ParseScope(tt.in); len(got) != tt.want {
			t.Errorf("ParseScope(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}

	if got := FormatScope([]string{"profile", "email"}); got != "profile email" {
		t.Errorf("FormatScope() = %q", got)
	}
}

func TestGrantDurationDefaultsSane(t *testing.T) {
	if DefaultAuthorizationCodeTTL != 5*time.Minute {
		t.Errorf("DefaultAuthorizationCodeTTL = %v", DefaultAuthorizationCodeTTL)
	}
	if DefaultAccessTokenTTL != time.Hour {
		t.Errorf("DefaultAccessTokenTTL = %v", DefaultAccessTokenTTL)
	}
}
