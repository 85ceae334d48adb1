package emailrequest

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Observer is told about every decision, metrics hook in here
type Observer interface {
	ThrottleDecision(purpose Purpose, d Decision)
}

// Throttle decides whether another e-mail may go out
type Throttle struct {
	db       *sqlx.DB
	cfg      config.ThrottleConfig
	clock    kernel.Clock
	observer Observer
}

func NewThrottle(db *sqlx.DB, cfg config.ThrottleConfig, clock kernel.Clock, observer Observer) *Throttle {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &Throttle{db: db, cfg: cfg, clock: clock, observer: observer}
}

// Request records an attempt to send purpose to email. The counter only
// moves for allowed requests.
func (t *Throttle) Request(ctx context.Context, purpose Purpose, email string) (Decision, error) {
	d, err := t.request(ctx, purpose, kernel.HashEmail(email))
	if err != nil {
		return 0, err
	}
	if t.observer != nil {
		t.observer.ThrottleDecision(purpose, d)
	}
	if d != Allowed {
		logx.WithContext(ctx).WithFields(logx.Fields{
			"purpose":  purpose,
			"decision": d.String(),
		}).Info("e-mail request denied")
	}
	return d, nil
}

func (t *Throttle) request(ctx context.Context, purpose Purpose, hash string) (Decision, error) {
	q := store.Q(ctx, t.db)
	now := t.clock.Now()

	if err := t.ensure(ctx, q, purpose, hash); err != nil {
		return 0, err
	}

	row, err := t.find(ctx, q, purpose, hash)
	if err != nil {
		return 0, err
	}

	switch {
	case row.Blocked:
		return Blocked, nil
	case row.TotalRequests >= t.cfg.Ceiling:
		return RateLimited, nil
	case row.LastRequestAt != nil && now.Sub(*row.LastRequestAt) < t.cfg.Spacing:
		return RateLimited, nil
	}

	// a concurrent request for the same key moves total_requests first and
	// makes this update miss
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE email_requests
		SET total_requests = total_requests + 1, last_request_at = ?, updated_at = ?
		WHERE purpose = ? AND email_hash = ? AND total_requests = ? AND blocked = ?`),
		now, now, string(purpose), hash, row.TotalRequests, false)
	if err != nil {
		return 0, errx.Wrap(err, "update e-mail request", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "update e-mail request", errx.TypeInternal)
	}
	if n != 1 {
		return RateLimited, nil
	}
	return Allowed, nil
}

// Allow is Request for callers that only care about permission: a denial
// comes back as ErrRateLimited or ErrBlocked.
func (t *Throttle) Allow(ctx context.Context, purpose Purpose, email string) error {
	d, err := t.Request(ctx, purpose, email)
	if err != nil {
		return err
	}
	return d.Err()
}

// Reset clears the counter after a workflow completed
func (t *Throttle) Reset(ctx context.Context, purpose Purpose, email string) error {
	q := store.Q(ctx, t.db)
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE email_requests SET total_requests = 0, last_request_at = NULL, updated_at = ?
		WHERE purpose = ? AND email_hash = ?`),
		t.clock.Now(), string(purpose), kernel.HashEmail(email))
	if err != nil {
		return errx.Wrap(err, "reset e-mail request", errx.TypeInternal)
	}
	return nil
}

// Block marks the pair as permanently blocked. It reports false when it was
// blocked already.
func (t *Throttle) Block(ctx context.Context, purpose Purpose, emailHash string) (bool, error) {
	q := store.Q(ctx, t.db)
	if err := t.ensure(ctx, q, purpose, emailHash); err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE email_requests SET blocked = ?, updated_at = ?
		WHERE purpose = ? AND email_hash = ? AND blocked = ?`),
		true, t.clock.Now(), string(purpose), emailHash, false)
	if err != nil {
		return false, errx.Wrap(err, "block e-mail request", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "block e-mail request", errx.TypeInternal)
	}
	return n == 1, nil
}

// Get returns the row for purpose and email, nil when never requested
func (t *Throttle) Get(ctx context.Context, purpose Purpose, email string) (*EMailRequest, error) {
	row, err := t.find(ctx, store.Q(ctx, t.db), purpose, kernel.HashEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return row, err
}

func (t *Throttle) ensure(ctx context.Context, q sqlx.ExtContext, purpose Purpose, hash string) error {
	now := t.clock.Now()
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO email_requests (id, purpose, email_hash, total_requests, blocked, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (purpose, email_hash) DO NOTHING`),
		uuid.NewString(), string(purpose), hash, false, now, now)
	if err != nil {
		return errx.Wrap(err, "create e-mail request", errx.TypeInternal)
	}
	return nil
}

func (t *Throttle) find(ctx context.Context, q sqlx.ExtContext, purpose Purpose, hash string) (*EMailRequest, error) {
	var row EMailRequest
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`
		SELECT id, purpose, email_hash, total_requests, last_request_at, blocked, created_at, updated_at
		FROM email_requests WHERE purpose = ? AND email_hash = ?`), string(purpose), hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errx.Wrap(err, "find e-mail request", errx.TypeInternal)
	}
	return &row, nil
}
