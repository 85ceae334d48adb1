package providerinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

const columns = `id, user_id, provider, provider_id, data, created_at, updated_at`

// SQLLoginProviderRepository implements provider.Repository on sqlx
type SQLLoginProviderRepository struct {
	db *sqlx.DB
}

func NewSQLLoginProviderRepository(db *sqlx.DB) provider.Repository {
	return &SQLLoginProviderRepository{db: db}
}

func (r *SQLLoginProviderRepository) Create(ctx context.Context, lp *provider.LoginProvider) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO login_providers (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		lp.ID, lp.UserID.String(), lp.Provider, lp.ProviderID, lp.Data, lp.CreatedAt, lp.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return provider.ErrAlreadyLinked().WithDetail("provider", lp.Provider)
		}
		return errx.Wrap(err, "failed to create login provider", errx.TypeInternal).WithDetail("provider", lp.Provider)
	}
	return nil
}

func (r *SQLLoginProviderRepository) FindByProviderID(ctx context.Context, name, providerID string) (*provider.LoginProvider, error) {
	return r.get(ctx, `WHERE provider = ? AND provider_id = ?`, name, providerID)
}

func (r *SQLLoginProviderRepository) FindForUser(ctx context.Context, userID kernel.UserID, name string) (*provider.LoginProvider, error) {
	return r.get(ctx, `WHERE user_id = ? AND provider = ? ORDER BY created_at LIMIT 1`, userID.String(), name)
}

func (r *SQLLoginProviderRepository) ListByUser(ctx context.Context, userID kernel.UserID) ([]*provider.LoginProvider, error) {
	q := store.Q(ctx, r.db)
	var out []*provider.LoginProvider
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(`SELECT `+columns+` FROM login_providers WHERE user_id = ? ORDER BY created_at, id`), userID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list login providers", errx.TypeInternal)
	}
	return out, nil
}

func (r *SQLLoginProviderRepository) CountByUser(ctx context.Context, userID kernel.UserID) (int, error) {
	q := store.Q(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM login_providers WHERE user_id = ?`), userID.String()); err != nil {
		return 0, errx.Wrap(err, "failed to count login providers", errx.TypeInternal)
	}
	return n, nil
}

func (r *SQLLoginProviderRepository) UpdateData(ctx context.Context, lp *provider.LoginProvider) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE login_providers SET data = ?, updated_at = ? WHERE id = ?`), lp.Data, lp.UpdatedAt, lp.ID)
	if err != nil {
		return errx.Wrap(err, "failed to update login provider", errx.TypeInternal)
	}
	return nil
}

// LockOwner touches the user row. Postgres keeps the row locked and sqlite
// the database write lock until the transaction ends.
func (r *SQLLoginProviderRepository) LockOwner(ctx context.Context, userID kernel.UserID) error {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET updated_at = updated_at WHERE id = ?`), userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to lock account", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to lock account", errx.TypeInternal)
	}
	if n == 0 {
		return provider.ErrNotFound()
	}
	return nil
}

func (r *SQLLoginProviderRepository) Delete(ctx context.Context, userID kernel.UserID, id string) error {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM login_providers WHERE user_id = ? AND id = ?`), userID.String(), id)
	if err != nil {
		return errx.Wrap(err, "failed to delete login provider", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to delete login provider", errx.TypeInternal)
	}
	if n == 0 {
		return provider.ErrNotFound()
	}
	return nil
}

func (r *SQLLoginProviderRepository) get(ctx context.Context, where string, args ...any) (*provider.LoginProvider, error) {
	q := store.Q(ctx, r.db)
	var lp provider.LoginProvider
	if err := sqlx.GetContext(ctx, q, &lp, q.Rebind(`SELECT `+columns+` FROM login_providers `+where), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, provider.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find login provider", errx.TypeInternal)
	}
	return &lp, nil
}
