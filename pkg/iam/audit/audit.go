// Package audit records security relevant events of the identity workflows.
package audit

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// Service defines the contract for authentication audit logging
type Service interface {
	LogLoginAttempt(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, method string, success bool, ip string, userAgent string)
	LogLogout(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, ip string)
	LogTokenIssued(ctx context.Context, userID kernel.UserID, tokenID kernel.AccessTokenID, kind string)
	LogTokenRevoked(ctx context.Context, userID kernel.UserID, tokenID kernel.AccessTokenID, by kernel.UserID)
	LogAccountCreated(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, method string)
	LogAccountLinked(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, method string)
	LogEmailChanged(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID)
	LogPasswordChanged(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, reset bool)
}
