package userinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

const columns = `id, tenant_id, email, display_name, language, superuser, disabled,
	new_email, email_change_code, data, created_at, updated_at`

var orderColumns = map[string]string{
	"created": "created_at",
	"updated": "updated_at",
	"email":   "email",
}

// SQLUserRepository implements user.Repository on sqlx
type SQLUserRepository struct {
	db *sqlx.DB
}

func NewSQLUserRepository(db *sqlx.DB) user.Repository {
	return &SQLUserRepository{db: db}
}

func (r *SQLUserRepository) Create(ctx context.Context, u *user.User) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO users (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID.String(), u.TenantID.String(), u.Email, u.DisplayName, u.Language, u.Superuser, u.Disabled,
		u.NewEmail, u.EmailChangeCode, u.Data, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return user.ErrEmailTaken()
		}
		return errx.Wrap(err, "failed to create user", errx.TypeInternal).WithDetail("user_id", u.ID)
	}
	return nil
}

func (r *SQLUserRepository) FindByID(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) (*user.User, error) {
	return r.get(ctx, `WHERE tenant_id = ? AND id = ?`, tenant.String(), id.String())
}

func (r *SQLUserRepository) Get(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return r.get(ctx, `WHERE id = ?`, id.String())
}

func (r *SQLUserRepository) FindByEmail(ctx context.Context, tenant kernel.TenantID, email string) (*user.User, error) {
	return r.get(ctx, `WHERE tenant_id = ? AND email = ?`, tenant.String(), kernel.NormalizeEmail(email))
}

func (r *SQLUserRepository) EmailTaken(ctx context.Context, tenant kernel.TenantID, email string) (bool, error) {
	q := store.Q(ctx, r.db)
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM users WHERE tenant_id = ? AND email = ?`),
		tenant.String(), kernel.NormalizeEmail(email))
	if err != nil {
		return false, errx.Wrap(err, "failed to check email", errx.TypeInternal)
	}
	return n > 0, nil
}

func (r *SQLUserRepository) List(ctx context.Context, tenant kernel.TenantID, opts kernel.ListOptions) (kernel.Paginated[*user.User], error) {
	opts = opts.Normalize(user.ListOrder...)
	q := store.Q(ctx, r.db)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, q.Rebind(`SELECT COUNT(*) FROM users WHERE tenant_id = ?`), tenant.String()); err != nil {
		return kernel.Paginated[*user.User]{}, errx.Wrap(err, "failed to count users", errx.TypeInternal)
	}

	// column and direction come from a closed set, never from the request
	query := fmt.Sprintf(`SELECT %s FROM users WHERE tenant_id = ? ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		columns, orderColumns[opts.OrderBy], opts.Direction)

	var users []*user.User
	if err := sqlx.SelectContext(ctx, q, &users, q.Rebind(query), tenant.String(), opts.Limit, opts.Offset); err != nil {
		return kernel.Paginated[*user.User]{}, errx.Wrap(err, "failed to list users", errx.TypeInternal)
	}
	return kernel.NewPaginated(users, opts, total), nil
}

func (r *SQLUserRepository) Update(ctx context.Context, u *user.User) error {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE users SET
			email = ?, display_name = ?, language = ?, superuser = ?, disabled = ?,
			new_email = ?, email_change_code = ?, data = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`),
		u.Email, u.DisplayName, u.Language, u.Superuser, u.Disabled,
		u.NewEmail, u.EmailChangeCode, u.Data, u.UpdatedAt,
		u.ID.String(), u.TenantID.String())
	if err != nil {
		if store.IsUniqueViolation(err) {
			return user.ErrEmailTaken()
		}
		return errx.Wrap(err, "failed to update user", errx.TypeInternal).WithDetail("user_id", u.ID)
	}
	return expectOne(res, u.ID)
}

func (r *SQLUserRepository) Delete(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) error {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM users WHERE tenant_id = ? AND id = ?`), tenant.String(), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete user", errx.TypeInternal).WithDetail("user_id", id)
	}
	return expectOne(res, id)
}

func (r *SQLUserRepository) get(ctx context.Context, where string, args ...any) (*user.User, error) {
	q := store.Q(ctx, r.db)
	var u user.User
	if err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+columns+` FROM users `+where), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user", errx.TypeInternal)
	}
	return &u, nil
}

func expectOne(res sql.Result, id kernel.UserID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to read affected rows", errx.TypeInternal)
	}
	if n == 0 {
		return user.ErrUserNotFound().WithDetail("user_id", id)
	}
	return nil
}
