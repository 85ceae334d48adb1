// Package signup holds the account creation workflow: pending requests
// awaiting approval and the snapshot sealed into confirmation links.
package signup

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	validation "github.com/go-ozzo/ozzo-validation"
)

// Form are the signup fields owned by the workflow. The provider reads
// its own fields from the same body.
type Form struct {
	Language   string         `json:"language"`
	Trusted    bool           `json:"trusted"`
	Invitation string         `json:"invitation"`
	ExtraData  map[string]any `json:"extra_data"`
}

// ValidateFor checks f against the configured languages
func (f Form) ValidateFor(languages []string) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Language, validation.Required, validation.Length(2, 2), formx.Language(languages)),
		validation.Field(&f.Invitation, formx.InvitationToken),
	)
}

// Snapshot is everything needed to finish a signup later. It travels
// sealed, in confirmation links and in pending requests.
type Snapshot struct {
	Tenant    kernel.TenantID    `json:"tenant"`
	Provider  string             `json:"provider"`
	Validated provider.Validated `json:"validated"`
	Form      Form               `json:"form"`
}

// Request is a signup waiting for a superuser. Only a salted hash of the
// address is stored in clear.
type Request struct {
	ID        string          `db:"id"`
	TenantID  kernel.TenantID `db:"tenant_id"`
	EmailHash string          `db:"email_hash"`
	Data      string          `db:"data"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Pending is the superuser view of a Request
type Pending struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Provider      string         `json:"provider"`
	Language      string         `json:"language"`
	ExtraData     map[string]any `json:"extra_data,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

var ErrRegistry = errx.NewRegistry("SIGNUP")

var (
	CodeRequestNotFound = ErrRegistry.Register("REQUEST_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "not found")
	CodeRequestPending  = ErrRegistry.Register("REQUEST_PENDING", errx.TypeValidation, http.StatusBadRequest, "signup.request-pending")
)

func ErrRequestNotFound() *errx.Error { return ErrRegistry.New(CodeRequestNotFound) }

func ErrRequestPending() *errx.Error {
	return ErrRegistry.New(CodeRequestPending).WithField("email", "a request for this address is pending")
}
