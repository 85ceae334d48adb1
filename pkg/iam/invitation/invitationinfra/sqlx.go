package invitationinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

const columns = `id, tenant_id, email, token, valid, valid_until, accepted_at, tied_to_email,
	message, inviting_user_id, invited_user_id, created_at, updated_at`

// SQLInvitationRepository implements invitation.Repository on sqlx
type SQLInvitationRepository struct {
	db *sqlx.DB
}

func NewSQLInvitationRepository(db *sqlx.DB) invitation.Repository {
	return &SQLInvitationRepository{db: db}
}

func (r *SQLInvitationRepository) Create(ctx context.Context, inv *invitation.Invitation) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO invitations (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		inv.ID, inv.TenantID.String(), inv.Email, inv.Token, inv.Valid, inv.ValidUntil, inv.AcceptedAt,
		inv.TiedToEmail, inv.Message, userIDArg(inv.InvitingUserID), userIDArg(inv.InvitedUserID),
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return invitation.ErrAlreadyExists()
		}
		return errx.Wrap(err, "failed to create invitation", errx.TypeInternal).WithDetail("email", inv.Email)
	}
	return nil
}

func (r *SQLInvitationRepository) FindByID(ctx context.Context, tenant kernel.TenantID, id string) (*invitation.Invitation, error) {
	return r.get(ctx, `WHERE tenant_id = ? AND id = ?`, tenant.String(), id)
}

func (r *SQLInvitationRepository) FindByToken(ctx context.Context, tenant kernel.TenantID, token string) (*invitation.Invitation, error) {
	return r.get(ctx, `WHERE tenant_id = ? AND token = ?`, tenant.String(), token)
}

func (r *SQLInvitationRepository) List(ctx context.Context, tenant kernel.TenantID) ([]*invitation.Invitation, error) {
	q := store.Q(ctx, r.db)
	var out []*invitation.Invitation
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(`
		SELECT `+columns+` FROM invitations WHERE tenant_id = ? ORDER BY created_at DESC, id`), tenant.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list invitations", errx.TypeInternal)
	}
	if out == nil {
		out = []*invitation.Invitation{}
	}
	return out, nil
}

func (r *SQLInvitationRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE invitations SET valid = ?, accepted_at = ?, updated_at = ?
		WHERE id = ? AND valid = ?`),
		false, at, at, id, true)
	if err != nil {
		return false, errx.Wrap(err, "failed to accept invitation", errx.TypeInternal).WithDetail("invitation_id", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to read affected rows", errx.TypeInternal)
	}
	return n == 1, nil
}

func (r *SQLInvitationRepository) SetInvitedUser(ctx context.Context, id string, userID kernel.UserID, at time.Time) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE invitations SET invited_user_id = ?, updated_at = ? WHERE id = ?`),
		userID.String(), at, id)
	if err != nil {
		return errx.Wrap(err, "failed to link invited user", errx.TypeInternal).WithDetail("invitation_id", id)
	}
	return nil
}

func (r *SQLInvitationRepository) Delete(ctx context.Context, tenant kernel.TenantID, id string) error {
	q := store.Q(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM invitations WHERE tenant_id = ? AND id = ?`), tenant.String(), id)
	if err != nil {
		return errx.Wrap(err, "failed to delete invitation", errx.TypeInternal).WithDetail("invitation_id", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to read affected rows", errx.TypeInternal)
	}
	if n == 0 {
		return invitation.ErrNotFound()
	}
	return nil
}

func (r *SQLInvitationRepository) get(ctx context.Context, where string, args ...any) (*invitation.Invitation, error) {
	q := store.Q(ctx, r.db)
	var inv invitation.Invitation
	if err := sqlx.GetContext(ctx, q, &inv, q.Rebind(`SELECT `+columns+` FROM invitations `+where), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invitation.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find invitation", errx.TypeInternal)
	}
	return &inv, nil
}

func userIDArg(id *kernel.UserID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
