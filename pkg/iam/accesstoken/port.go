package accesstoken

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// Repository persists access tokens
type Repository interface {
	Create(ctx context.Context, t *AccessToken) error

	// FindValidByHash only returns tokens whose valid flag is set
	FindValidByHash(ctx context.Context, hash string) (*AccessToken, error)

	FindByID(ctx context.Context, id kernel.AccessTokenID) (*AccessToken, error)

	// ListValidByUser returns the valid tokens of a user, newest first
	ListValidByUser(ctx context.Context, userID kernel.UserID) ([]*AccessToken, error)

	CountValidByUser(ctx context.Context, userID kernel.UserID) (int, error)

	// Update writes the mutable fields back
	Update(ctx context.Context, t *AccessToken) error
}
