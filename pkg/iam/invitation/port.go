package invitation

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// Repository persists invitations in the unit of work of ctx
type Repository interface {
	// Create fails with ErrAlreadyExists when the tenant invited the address before
	Create(ctx context.Context, inv *Invitation) error

	FindByID(ctx context.Context, tenant kernel.TenantID, id string) (*Invitation, error)
	FindByToken(ctx context.Context, tenant kernel.TenantID, token string) (*Invitation, error)

	// List returns the newest first
	List(ctx context.Context, tenant kernel.TenantID) ([]*Invitation, error)

	// MarkAccepted flips valid off when it is still on. It reports false when
	// another request got there first.
	MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)

	SetInvitedUser(ctx context.Context, id string, userID kernel.UserID, at time.Time) error

	Delete(ctx context.Context, tenant kernel.TenantID, id string) error
}
