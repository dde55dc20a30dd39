package token

import (
	"testing"
	"time"
)

func TestFactoriesMintDistinctValues(t *testing.T) {
	factory := NewAccessTokenFactory(time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		created, err := factory.Create("client-1", "user-1", nil)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[created.Value] {
			t.Fatal("factory minted a duplicate value")
		}
		seen[created.Value] = true
	}
}

func TestFactoryTTL(t *testing.T) {
	factory := NewAuthorizationCodeFactory(5 * time.Minute)
	created, err := factory.Create("client-1", "user-1", "https://client.example.com/cb", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	remaining := time.Until(created.Token.ExpiresAt)
	if remaining <= 4*time.Minute || remaining > 5*time.Minute {
		t.Errorf("expiry %v not within expected window", remaining)
	}
	if created.Token.RedirectURI != "https://client.example.com/cb" {
		t.Errorf("RedirectURI = %q", created.Token.RedirectURI)
	}
}

func TestRefreshFactoryZeroTTLNeverExpires(t *testing.T) {
	factory := NewRefreshTokenFactory(0)
	created, err := factory.Create("client-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !created.Token.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", created.Token.ExpiresAt)
	}
	if created.Token.Expired() {
		t.Error("token without expiry must never report expired")
	}
}

func TestFactoryCopiesScopes(t *testing.T) {
	scopes := []string{"profile"}
	factory := NewAccessTokenFactory(time.Hour)
	created, err := factory.Create("client-1", "user-1", scopes)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	scopes[0] = "admin"
	if created.Token.Scopes[0] != "profile" {
		t.Error("factory must copy the scope slice")
	}
}

func TestMintedValueHashRoundTrip(t *testing.T) {
	factory := NewRefreshTokenFactory(time.Hour)
	created, err := factory.Create("client-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !created.Token.Matches(created.Value) {
		t.Error("minted entity must match its own plaintext")
	}

	other, err := factory.Create("client-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Token.Matches(other.Value) {
		t.Error("entity must not match another token's plaintext")
	}
}
