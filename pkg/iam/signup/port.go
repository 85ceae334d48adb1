package signup

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

type Repository interface {
	// Create fails with ErrRequestPending for a second request of the same address
	Create(ctx context.Context, r *Request) error
	FindByID(ctx context.Context, tenant kernel.TenantID, id string) (*Request, error)
	List(ctx context.Context, tenant kernel.TenantID) ([]*Request, error)
	Delete(ctx context.Context, tenant kernel.TenantID, id string) error
}
