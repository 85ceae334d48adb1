// Package envelope seals short lived claims for untrusted channels such as
// e-mailed links. Tampered, expired and malformed envelopes are rejected with
// the same error.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"golang.org/x/crypto/chacha20poly1305"
)

const version byte = 1

var ErrRegistry = errx.NewRegistry("ENVELOPE")

var CodeInvalid = ErrRegistry.Register("INVALID", errx.TypeValidation, http.StatusBadRequest, "invalid or expired code")

func ErrInvalidEnvelope() *errx.Error { return ErrRegistry.New(CodeInvalid) }

// Sealer seals and opens envelopes with one secret
type Sealer struct {
	key   [32]byte
	clock kernel.Clock
}

// New derives the key from secret
func New(secret string, clock kernel.Clock) *Sealer {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &Sealer{key: sha256.Sum256([]byte(secret)), clock: clock}
}

// Seal encodes v as JSON and encrypts it. The issue time is authenticated
// but not encrypted.
func (s *Sealer) Seal(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", errx.Wrap(err, "encode envelope payload", errx.TypeInternal)
	}

	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return "", errx.Wrap(err, "init cipher", errx.TypeInternal)
	}

	header := make([]byte, 1+8, 1+8+aead.NonceSize()+len(plain)+aead.Overhead())
	header[0] = version
	binary.BigEndian.PutUint64(header[1:], uint64(s.clock.Now().Unix()))

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errx.Wrap(err, "read nonce", errx.TypeInternal)
	}

	out := append(header, nonce...)
	out = aead.Seal(out, nonce, plain, header[:9])
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts token into out. Envelopes older than ttl fail.
func (s *Sealer) Open(token string, ttl time.Duration, out any) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrInvalidEnvelope()
	}

	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return errx.Wrap(err, "init cipher", errx.TypeInternal)
	}
	if len(raw) < 9+aead.NonceSize()+aead.Overhead() || raw[0] != version {
		return ErrInvalidEnvelope()
	}

	header := raw[:9]
	nonce := raw[9 : 9+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, raw[9+aead.NonceSize():], header)
	if err != nil {
		return ErrInvalidEnvelope()
	}

	issued := time.Unix(int64(binary.BigEndian.Uint64(header[1:])), 0)
	now := s.clock.Now()
	// a minute of skew is accepted for envelopes sealed by another node
	if issued.After(now.Add(time.Minute)) || now.Sub(issued) > ttl {
		return ErrInvalidEnvelope()
	}

	if err := json.Unmarshal(plain, out); err != nil {
		return ErrInvalidEnvelope()
	}
	return nil
}
