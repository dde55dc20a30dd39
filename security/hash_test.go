package security

import (
	"bytes"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, salt, err := HashValue("some-secret-value", 4096)
	if err != nil {
		t.Fatalf("HashValue() error = %v", err)
	}
	if len(hash) != KeyLength {
		t.Errorf("hash length = %d, want %d", len(hash), KeyLength)
	}
	if len(salt) != SaltLength {
		t.Errorf("salt length = %d, want %d", len(salt), SaltLength)
	}

	if !VerifyValue("some-secret-value", hash, salt, 4096) {
		t.Error("correct value should verify")
	}
	if VerifyValue("wrong-value", hash, salt, 4096) {
		t.Error("wrong value should not verify")
	}
	if VerifyValue("some-secret-value", hash, salt, 8192) {
		t.Error("wrong iteration count should not verify")
	}
}

func TestHashSaltIsUnique(t *testing.T) {
	_, salt1, err := HashValue("value", 4096)
	if err != nil {
		t.Fatalf("HashValue() error = %v", err)
	}
	_, salt2, err := HashValue("value", 4096)
	if err != nil {
		t.Fatalf("HashValue() error = %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("salts must differ between calls")
	}
}

func TestRandomValue(t *testing.T) {
	v1, err := RandomValue(28)
	if err != nil {
		t.Fatalf("RandomValue() error = %v", err)
	}
	v2, err := RandomValue(28)
	if err != nil {
		t.Fatalf("RandomValue() error = %v", err)
	}
	if v1 == v2 {
		t.Error("random values must differ")
	}
	for _, c := range v1 {
		if c == '.' || c == '=' || c == '+' || c == '/' {
			t.Errorf("value %q contains a character outside the base64url alphabet", v1)
		}
	}
}
