package emailrequest

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

type blockClaims struct {
	EmailHash string  `json:"h"`
	Purpose   Purpose `json:"p"`
}

// Sealer seals the claims of a block link
type Sealer interface {
	cryptotoken.Opener
	Seal(v any) (string, error)
}

// Blocker issues and redeems the block links attached to throttled e-mails
type Blocker struct {
	throttle *Throttle
	sealer   Sealer
	gate     *cryptotoken.Gate
	ttl      time.Duration
}

func NewBlocker(throttle *Throttle, sealer Sealer, gate *cryptotoken.Gate, ttl time.Duration) *Blocker {
	return &Blocker{throttle: throttle, sealer: sealer, gate: gate, ttl: ttl}
}

// Code returns the opaque value of a link blocking purpose for email
func (b *Blocker) Code(purpose Purpose, email string) (string, error) {
	return b.sealer.Seal(blockClaims{EmailHash: kernel.HashEmail(email), Purpose: purpose})
}

// BlockByCode redeems a block link. It reports false when the pair was
// already blocked.
func (b *Blocker) BlockByCode(ctx context.Context, code string) (bool, error) {
	var claims blockClaims
	if err := b.gate.RedeemEnvelope(ctx, b.sealer, code, b.ttl, &claims); err != nil {
		return false, err
	}
	return b.throttle.Block(ctx, claims.Purpose, claims.EmailHash)
}
