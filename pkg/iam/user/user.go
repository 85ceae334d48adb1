package user

import (
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/google/uuid"
)

// User is an account of one tenant. Email is always stored canonical.
type User struct {
	ID              kernel.UserID     `db:"id" json:"id"`
	TenantID        kernel.TenantID   `db:"tenant_id" json:"tenant_id"`
	Email           string            `db:"email" json:"email"`
	DisplayName     string            `db:"display_name" json:"display_name"`
	Language        string            `db:"language" json:"language"`
	Superuser       bool              `db:"superuser" json:"superuser"`
	Disabled        bool              `db:"disabled" json:"disabled"`
	NewEmail        *string           `db:"new_email" json:"new_email"`
	EmailChangeCode *string           `db:"email_change_code" json:"-"`
	Data            kernel.Attributes `db:"data" json:"data"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// New builds a user that is not persisted yet
func New(tenant kernel.TenantID, email, language string, now time.Time) *User {
	return &User{
		ID:        kernel.NewUserID(uuid.NewString()),
		TenantID:  tenant,
		Email:     kernel.NormalizeEmail(email),
		Language:  language,
		Data:      kernel.Attributes{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanLogin reports whether the account may hold a session
func (u *User) CanLogin() bool {
	return !u.Disabled
}

// AuthContext returns the principal view of u for token
func (u *User) AuthContext(token kernel.AccessTokenID, scopes []string) *kernel.AuthContext {
	return &kernel.AuthContext{
		UserID:    u.ID,
		TenantID:  u.TenantID,
		TokenID:   token,
		Email:     u.Email,
		Scopes:    scopes,
		Superuser: u.Superuser,
	}
}

// ListOrder are the columns admin listings may be ordered by
var ListOrder = []string{"created", "updated", "email"}
