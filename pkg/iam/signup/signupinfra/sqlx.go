package signupinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

const columns = `id, tenant_id, email_hash, data, created_at, updated_at`

type SQLSignupRequestRepository struct {
	db *sqlx.DB
}

func NewSQLSignupRequestRepository(db *sqlx.DB) signup.Repository {
	return &SQLSignupRequestRepository{db: db}
}

func (r *SQLSignupRequestRepository) Create(ctx context.Context, req *signup.Request) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO signup_requests (`+columns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		req.ID, req.TenantID.String(), req.EmailHash, req.Data, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return signup.ErrRequestPending()
		}
		return errx.Wrap(err, "failed to create signup request", errx.TypeInternal)
	}
	return nil
}

func (r *SQLSignupRequestRepository) FindByID(ctx context.Context, tenant kernel.TenantID, id string) (*signup.Request, error) {
	q := store.Q(ctx, r.db)
	var req signup.Request
	err := sqlx.GetContext(ctx, q, &req, q.Rebind(`SELECT `+columns+` FROM signup_requests WHERE tenant_id = ? AND id = ?`),
		tenant.String(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, signup.ErrRequestNotFound()
		}
		return nil, errx.Wrap(err, "failed to find signup request", errx.TypeInternal)
	}
	return &req, nil
}

func (r *SQLSignupRequestRepository) List(ctx context.Context, tenant kernel.TenantID) ([]*signup.Request, error) {
	q := store.Q(ctx, r.db)
	var out []*signup.Request
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(`
		SELECT `+columns+` FROM signup_requests WHERE tenant_id = ? ORDER BY created_at DESC, id`), tenant.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list signup requests", errx.TypeInternal)
	}
	return out, nil
}

func (r *SQLSignupRequestRepository) Delete(ctx context.Context, tenant kernel.TenantID, id string) error {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM signup_requests WHERE tenant_id = ? AND id = ?`), tenant.String(), id)
	if err != nil {
		return errx.Wrap(err, "failed to delete signup request", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to read affected rows", errx.TypeInternal)
	}
	if n == 0 {
		return signup.ErrRequestNotFound()
	}
	return nil
}
