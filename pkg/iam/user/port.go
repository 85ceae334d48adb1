package user

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// Repository persists users. Every method runs in the unit of work carried
// by ctx when there is one.
type Repository interface {
	// Create fails with ErrEmailTaken when the tenant already has the address
	Create(ctx context.Context, u *User) error

	FindByID(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) (*User, error)

	// Get ignores the tenant, it resolves the owner of a credential
	Get(ctx context.Context, id kernel.UserID) (*User, error)

	// FindByEmail looks the canonical form of email up
	FindByEmail(ctx context.Context, tenant kernel.TenantID, email string) (*User, error)

	// EmailTaken reports whether the canonical address is used in the tenant
	EmailTaken(ctx context.Context, tenant kernel.TenantID, email string) (bool, error)

	List(ctx context.Context, tenant kernel.TenantID, opts kernel.ListOptions) (kernel.Paginated[*User], error)

	Update(ctx context.Context, u *User) error

	Delete(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) error
}
