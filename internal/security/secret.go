package security

import (
	"crypto/sha256"
	"crypto/subtle"
)

// EqualSecret compares a supplied secret with the expected one in constant time.
// Both sides are hashed first so the comparison does not leak the length.
// An empty expected secret never matches.
func EqualSecret(supplied, expected string) bool {
	if expected == "" {
		return false
	}
	a := sha256.Sum256([]byte(supplied))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
