package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeEmail returns the canonical form of an address. Every entry point
// stores and compares addresses in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail is the hex sha256 of the canonical address
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// SaltedHash is the hex sha256 of salt and value
func SaltedHash(salt, value string) string {
	sum := sha256.Sum256([]byte(salt + "\x00" + value))
	return hex.EncodeToString(sum[:])
}

// HashToken is the hex sha256 of an opaque secret. Only this form is stored.
func HashToken(opaque string) string {
	sum := sha256.Sum256([]byte(opaque))
	return hex.EncodeToString(sum[:])
}
