package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashCredential returns the SHA-256 hex digest of a staff or admin
// password. Only the digest ever goes over the wire; plain credentials stay
// in the login flow, which owns them.
func HashCredential(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%x", sum)
}

// ValidateHash checks if a hash string is valid (64 character hex string)
func ValidateHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}

	for _, char := range hash {
		if !((char >= '0' && char <= '9') || (char >= 'a' && char <= 'f')) {
			return false
		}
	}

	return true
}
