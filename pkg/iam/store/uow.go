package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/jmoiron/sqlx"
)

// UnitOfWork is one database transaction plus the hooks that must only run
// once it committed.
type UnitOfWork struct {
	tx *sqlx.Tx

	mu    sync.Mutex
	hooks []func(context.Context)
	depth int
}

type uowKey struct{}

// Begin starts a unit of work
func Begin(ctx context.Context, db *sqlx.DB) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "begin transaction", errx.TypeInternal)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Tx exposes the underlying transaction
func (u *UnitOfWork) Tx() *sqlx.Tx { return u.tx }

// AfterCommit registers fn to run after a successful commit. Hooks never run
// for rolled back work.
func (u *UnitOfWork) AfterCommit(fn func(context.Context)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hooks = append(u.hooks, fn)
}

// Commit commits and then runs the after-commit hooks in order
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return errx.Wrap(err, "commit transaction", errx.TypeInternal)
	}

	u.mu.Lock()
	hooks := u.hooks
	u.hooks = nil
	u.mu.Unlock()

	hctx := context.WithoutCancel(ctx)
	for _, h := range hooks {
		h(hctx)
	}
	return nil
}

// Rollback aborts the work. Rolling back a finished transaction is a no-op.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	u.hooks = nil
	u.mu.Unlock()

	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errx.Wrap(err, "rollback transaction", errx.TypeInternal)
	}
	return nil
}

// Nested runs fn inside a savepoint. When fn fails only its own writes and
// hooks are undone and the outer work stays usable.
func (u *UnitOfWork) Nested(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	u.depth++
	sp := fmt.Sprintf("sp_%s_%d", name, u.depth)
	mark := len(u.hooks)
	u.mu.Unlock()

	if _, err := u.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return errx.Wrap(err, "create savepoint", errx.TypeInternal)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := u.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			logx.WithError(rbErr).WithField("savepoint", sp).Error("rollback to savepoint failed")
		}
		u.mu.Lock()
		u.hooks = u.hooks[:mark]
		u.mu.Unlock()
		return err
	}

	if _, err := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return errx.Wrap(err, "release savepoint", errx.TypeInternal)
	}
	return nil
}

// WithUnitOfWork returns a context carrying u
func WithUnitOfWork(ctx context.Context, u *UnitOfWork) context.Context {
	return context.WithValue(ctx, uowKey{}, u)
}

// From returns the unit of work carried by ctx
func From(ctx context.Context) (*UnitOfWork, bool) {
	u, ok := ctx.Value(uowKey{}).(*UnitOfWork)
	return u, ok && u != nil
}

// Q returns the querier for ctx: the transaction of the current unit of
// work, or db itself outside of one.
func Q(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if u, ok := From(ctx); ok {
		return u.tx
	}
	return db
}

// AfterCommit defers fn until the unit of work in ctx commits. Without a
// unit of work fn runs right away.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if u, ok := From(ctx); ok {
		u.AfterCommit(fn)
		return
	}
	fn(context.WithoutCancel(ctx))
}

// Nested runs fn in a savepoint of the current unit of work, or as is when
// ctx carries none.
func Nested(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if u, ok := From(ctx); ok {
		return u.Nested(ctx, name, fn)
	}
	return fn(ctx)
}

// WithinTx runs fn in a unit of work, reusing the one in ctx when present.
func WithinTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	u, err := Begin(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := u.Rollback(); rbErr != nil {
			logx.WithError(rbErr).Error("rollback failed")
		}
	}()
	if err := fn(WithUnitOfWork(ctx, u)); err != nil {
		return err
	}
	return u.Commit(ctx)
}
