// Package cryptotoken makes the opaque values carried in e-mailed envelopes
// single use. Only the sha256 of a value is ever stored.
package cryptotoken

import (
	"context"
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Outcome of a redemption
type Outcome int

const (
	FirstUse Outcome = iota + 1
	AlreadyUsed
	Expired
)

func (o Outcome) String() string {
	switch o {
	case FirstUse:
		return "first-use"
	case AlreadyUsed:
		return "already-used"
	case Expired:
		return "expired"
	}
	return "unknown"
}

var ErrRegistry = errx.NewRegistry("CRYPTO_TOKEN")

var CodeAlreadyRedeemed = ErrRegistry.Register("ALREADY_REDEEMED", errx.TypeValidation, http.StatusBadRequest, "code was already used")

func ErrTokenAlreadyRedeemed() *errx.Error { return ErrRegistry.New(CodeAlreadyRedeemed) }

// Gate flips the used flag of a token hash exactly once
type Gate struct {
	db    *sqlx.DB
	clock kernel.Clock
}

func NewGate(db *sqlx.DB, clock kernel.Clock) *Gate {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &Gate{db: db, clock: clock}
}

// Redeem marks opaque as used. It must run in the unit of work performing
// the action the value authorizes; concurrent callers race on the row and
// exactly one of them sees FirstUse.
func (g *Gate) Redeem(ctx context.Context, opaque string) (Outcome, error) {
	q := store.Q(ctx, g.db)
	hash := kernel.HashToken(opaque)
	now := g.clock.Now()

	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO crypto_tokens (id, hash, used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (hash) DO NOTHING`),
		uuid.NewString(), hash, false, now, now)
	if err != nil {
		return 0, errx.Wrap(err, "record crypto token", errx.TypeInternal)
	}

	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE crypto_tokens SET used = ?, updated_at = ?
		WHERE hash = ? AND used = ?`),
		true, now, hash, false)
	if err != nil {
		return 0, errx.Wrap(err, "redeem crypto token", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "redeem crypto token", errx.TypeInternal)
	}
	if n == 1 {
		return FirstUse, nil
	}
	return AlreadyUsed, nil
}

// Opener is the envelope side of a redemption
type Opener interface {
	Open(token string, ttl time.Duration, out any) error
}

// RedeemEnvelope opens envelope into out and redeems it. Every failure is
// returned as an error: the envelope error when it cannot be opened and
// ErrTokenAlreadyRedeemed on replay.
func (g *Gate) RedeemEnvelope(ctx context.Context, opener Opener, envelope string, ttl time.Duration, out any) error {
	if err := opener.Open(envelope, ttl, out); err != nil {
		return err
	}
	outcome, err := g.Redeem(ctx, envelope)
	if err != nil {
		return err
	}
	if outcome != FirstUse {
		return ErrTokenAlreadyRedeemed()
	}
	return nil
}
