// Package tenant isolates accounts: every user, invitation and signup
// request belongs to exactly one tenant.
package tenant

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type Tenant struct {
	ID        kernel.TenantID `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{1,62}$`)

// New validates name and builds a tenant that is not persisted yet
func New(name string, now time.Time) (*Tenant, error) {
	err := validation.Validate(name, validation.Required, validation.Match(namePattern))
	if err != nil {
		return nil, errx.Invalid(errx.FieldErrors{"name": {err.Error()}})
	}
	return &Tenant{
		ID:        kernel.NewTenantID(uuid.NewString()),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

var ErrRegistry = errx.NewRegistry("TENANT")

var (
	CodeNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "unknown tenant")
	CodeNameTaken = ErrRegistry.Register("NAME_TAKEN", errx.TypeValidation, http.StatusBadRequest, "tenant already exists")
)

func ErrTenantNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }
func ErrNameTaken() *errx.Error      { return ErrRegistry.New(CodeNameTaken).WithField("name", "already taken") }

type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)
	FindByName(ctx context.Context, name string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
}
