package accesstokeninfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

const columns = `id, user_id, token_hash, scopes, valid, valid_until, default_expiration_minutes,
	renews_when_used, last_used_at, last_used_from, description, is_api_token, data, created_at, updated_at`

// SQLAccessTokenRepository implements accesstoken.Repository on sqlx
type SQLAccessTokenRepository struct {
	db *sqlx.DB
}

func NewSQLAccessTokenRepository(db *sqlx.DB) accesstoken.Repository {
	return &SQLAccessTokenRepository{db: db}
}

func (r *SQLAccessTokenRepository) Create(ctx context.Context, t *accesstoken.AccessToken) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO access_tokens (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID.String(), t.UserID.String(), t.TokenHash, t.Scopes, t.Valid, t.ValidUntil, t.DefaultExpirationMinutes,
		t.RenewsWhenUsed, t.LastUsedAt, t.LastUsedFrom, t.Description, t.IsAPIToken, t.Data, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to create access token", errx.TypeInternal).WithDetail("user_id", t.UserID)
	}
	return nil
}

func (r *SQLAccessTokenRepository) FindValidByHash(ctx context.Context, hash string) (*accesstoken.AccessToken, error) {
	q := store.Q(ctx, r.db)
	var t accesstoken.AccessToken
	err := sqlx.GetContext(ctx, q, &t, q.Rebind(`SELECT `+columns+` FROM access_tokens WHERE token_hash = ? AND valid = ?`), hash, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accesstoken.ErrCredentialNotFound()
		}
		return nil, errx.Wrap(err, "failed to find access token", errx.TypeInternal)
	}
	return &t, nil
}

func (r *SQLAccessTokenRepository) FindByID(ctx context.Context, id kernel.AccessTokenID) (*accesstoken.AccessToken, error) {
	q := store.Q(ctx, r.db)
	var t accesstoken.AccessToken
	err := sqlx.GetContext(ctx, q, &t, q.Rebind(`SELECT `+columns+` FROM access_tokens WHERE id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accesstoken.ErrTokenNotFound()
		}
		return nil, errx.Wrap(err, "failed to find access token", errx.TypeInternal).WithDetail("token_id", id)
	}
	return &t, nil
}

func (r *SQLAccessTokenRepository) ListValidByUser(ctx context.Context, userID kernel.UserID) ([]*accesstoken.AccessToken, error) {
	q := store.Q(ctx, r.db)
	var tokens []*accesstoken.AccessToken
	err := sqlx.SelectContext(ctx, q, &tokens, q.Rebind(`
		SELECT `+columns+` FROM access_tokens
		WHERE user_id = ? AND valid = ?
		ORDER BY created_at DESC, id`), userID.String(), true)
	if err != nil {
		return nil, errx.Wrap(err, "failed to list access tokens", errx.TypeInternal).WithDetail("user_id", userID)
	}
	return tokens, nil
}

func (r *SQLAccessTokenRepository) CountValidByUser(ctx context.Context, userID kernel.UserID) (int, error) {
	q := store.Q(ctx, r.db)
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM access_tokens WHERE user_id = ? AND valid = ?`), userID.String(), true)
	if err != nil {
		return 0, errx.Wrap(err, "failed to count access tokens", errx.TypeInternal)
	}
	return n, nil
}

func (r *SQLAccessTokenRepository) Update(ctx context.Context, t *accesstoken.AccessToken) error {
	q := store.Q(ctx, r.db)
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE access_tokens SET
			scopes = ?, valid = ?, valid_until = ?, default_expiration_minutes = ?, renews_when_used = ?,
			last_used_at = ?, last_used_from = ?, description = ?, data = ?, updated_at = ?
		WHERE id = ?`),
		t.Scopes, t.Valid, t.ValidUntil, t.DefaultExpirationMinutes, t.RenewsWhenUsed,
		t.LastUsedAt, t.LastUsedFrom, t.Description, t.Data, t.UpdatedAt, t.ID.String())
	if err != nil {
		return errx.Wrap(err, "failed to update access token", errx.TypeInternal).WithDetail("token_id", t.ID)
	}
	return nil
}
