package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomValue returns the base64url encoding (unpadded) of n
// cryptographically random bytes. The output alphabet is A-Z a-z 0-9 - _,
// which the token value formatter relies on: its separator character can
// never appear inside a generated value.
func RandomValue(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
