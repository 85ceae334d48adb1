// Package invitation lets superusers invite people by e-mail. A usable
// invitation lets its holder sign up without approval, once.
package invitation

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// TokenBytes renders as the 32 hex characters of a token
const TokenBytes = 16

type Invitation struct {
	ID             string          `db:"id" json:"id"`
	TenantID       kernel.TenantID `db:"tenant_id" json:"-"`
	Email          string          `db:"email" json:"email"`
	Token          string          `db:"token" json:"token"`
	Valid          bool            `db:"valid" json:"valid"`
	ValidUntil     *time.Time      `db:"valid_until" json:"valid_until"`
	AcceptedAt     *time.Time      `db:"accepted_at" json:"accepted_at"`
	TiedToEmail    bool            `db:"tied_to_email" json:"tied_to_email"`
	Message        string          `db:"message" json:"message"`
	InvitingUserID *kernel.UserID  `db:"inviting_user_id" json:"inviting_user_id"`
	InvitedUserID  *kernel.UserID  `db:"invited_user_id" json:"invited_user_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// UsableAt reports whether the invitation can still be accepted
func (i *Invitation) UsableAt(now time.Time) bool {
	return i.Valid && (i.ValidUntil == nil || i.ValidUntil.After(now))
}

var ErrRegistry = errx.NewRegistry("INVITATION")

var (
	CodeNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "not found")
	CodeAlreadyExists = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeValidation, http.StatusBadRequest, "invitations.already-exists")
	CodeInvalid       = ErrRegistry.Register("INVALID", errx.TypeValidation, http.StatusBadRequest, "invalid-invitation")
)

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

func ErrAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeAlreadyExists).WithField("email", "already invited")
}

// ErrInvalid covers unknown, used and expired tokens alike
func ErrInvalid() *errx.Error {
	return ErrRegistry.New(CodeInvalid).WithField("invitation", "invalid-invitation")
}
