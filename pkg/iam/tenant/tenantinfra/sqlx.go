package tenantinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

type SQLTenantRepository struct {
	db *sqlx.DB
}

func NewSQLTenantRepository(db *sqlx.DB) tenant.Repository {
	return &SQLTenantRepository{db: db}
}

func (r *SQLTenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO tenants (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		t.ID.String(), t.Name, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return tenant.ErrNameTaken()
		}
		return errx.Wrap(err, "failed to create tenant", errx.TypeInternal)
	}
	return nil
}

func (r *SQLTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	return r.get(ctx, `id = ?`, id.String())
}

func (r *SQLTenantRepository) FindByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	return r.get(ctx, `name = ?`, name)
}

func (r *SQLTenantRepository) List(ctx context.Context) ([]*tenant.Tenant, error) {
	q := store.Q(ctx, r.db)
	var out []*tenant.Tenant
	if err := sqlx.SelectContext(ctx, q, &out, `SELECT id, name, created_at, updated_at FROM tenants ORDER BY name`); err != nil {
		return nil, errx.Wrap(err, "failed to list tenants", errx.TypeInternal)
	}
	return out, nil
}

func (r *SQLTenantRepository) get(ctx context.Context, where string, arg any) (*tenant.Tenant, error) {
	q := store.Q(ctx, r.db)
	var t tenant.Tenant
	err := sqlx.GetContext(ctx, q, &t, q.Rebind(`SELECT id, name, created_at, updated_at FROM tenants WHERE `+where), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant", errx.TypeInternal)
	}
	return &t, nil
}
