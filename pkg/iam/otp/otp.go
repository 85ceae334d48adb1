// Package otp generates the one-time codes mailed for e-mail changes,
// password resets and invitations, and compares them without leaking timing.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// CodeBytes is the entropy of a generated code, it renders as 32 hex chars
const CodeBytes = 16

var ErrRegistry = errx.NewRegistry("OTP")

var (
	CodeMismatch = ErrRegistry.Register("MISMATCH", errx.TypeNotFound, http.StatusNotFound, "not found")
	CodeExpired  = ErrRegistry.Register("EXPIRED", errx.TypeNotFound, http.StatusNotFound, "not found")
)

func ErrCodeMismatch() *errx.Error { return ErrRegistry.New(CodeMismatch) }
func ErrCodeExpired() *errx.Error  { return ErrRegistry.New(CodeExpired) }

// GenerateCode returns CodeBytes random bytes as lower case hex
func GenerateCode() (string, error) {
	return GenerateHex(CodeBytes)
}

// GenerateHex returns n random bytes as lower case hex
func GenerateHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errx.Wrap(err, "read random bytes", errx.TypeInternal)
	}
	return hex.EncodeToString(b), nil
}

// Matches compares a stored code with the one presented in constant time.
// An empty expected code never matches.
func Matches(expected, given string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// Hash is the stored form of a code
func Hash(code string) string {
	return kernel.HashToken(code)
}

// MatchesHash compares given against a stored Hash
func MatchesHash(expectedHash, given string) bool {
	if expectedHash == "" || given == "" {
		return false
	}
	return Matches(expectedHash, Hash(given))
}
