// Package security provides the cryptographic and auditing primitives of
// the authorization server: PBKDF2 value hashing, random value generation,
// security event logging, and rate limiting for security-event floods.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLength is the number of random salt bytes per hashed value.
	SaltLength = 16

	// KeyLength is the derived key length in bytes.
	KeyLength = 32
)

// HashValue derives a PBKDF2-SHA256 hash of value with a fresh random salt.
// The iteration count is chosen by the caller: long-lived secrets (refresh
// tokens) warrant a much higher count than short-lived ones.
func HashValue(value string, iterations int) (hash, salt []byte, err error) {
	if iterations <= 0 {
		return nil, nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	salt = make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash = pbkdf2.Key([]byte(value), salt, iterations, KeyLength, sha256.New)
	return hash, salt, nil
}

// VerifyValue recomputes the PBKDF2 hash of value under the stored salt and
// iteration count and compares it to the stored hash in constant time.
// The plaintext is never compared directly.
func VerifyValue(value string, hash, salt []byte, iterations int) bool {
	if len(hash) == 0 || len(salt) == 0 || iterations <= 0 {
		return false
	}
	derived := pbkdf2.Key([]byte(value), salt, iterations, len(hash), sha256.New)
	return subtle.ConstantTimeCompare(derived, hash) == 1
}
