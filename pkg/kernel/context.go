package kernel

import "context"

// ============================================================================
// Context Types
// ============================================================================

// AuthContext is the authenticated principal injected into each request
// after the bearer credential was resolved.
type AuthContext struct {
	UserID    UserID        `json:"user_id"`
	TenantID  TenantID      `json:"tenant_id"`
	TokenID   AccessTokenID `json:"token_id"`
	Email     string        `json:"email"`
	Scopes    []string      `json:"scopes"`
	Superuser bool          `json:"superuser"`
}

// IsValid reports whether the principal identifies a user of a tenant
func (ac *AuthContext) IsValid() bool {
	return ac != nil && !ac.UserID.IsEmpty() && !ac.TenantID.IsEmpty()
}

// HasScope reports whether scope is among the token scopes
func (ac *AuthContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every scope is held
func (ac *AuthContext) HasAllScopes(scopes ...string) bool {
	for _, scope := range scopes {
		if !ac.HasScope(scope) {
			return false
		}
	}
	return true
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	AuthContextKey   ContextKey = "auth_context"
	TenantContextKey ContextKey = "tenant_id"
	RequestIDKey     ContextKey = "request_id"
)

// WithAuth stores the principal in ctx
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// AuthFrom returns the principal stored in ctx, if any
func AuthFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return ac, ok && ac != nil
}

// WithTenant stores the resolved tenant in ctx
func WithTenant(ctx context.Context, id TenantID) context.Context {
	return context.WithValue(ctx, TenantContextKey, id)
}

// TenantFrom returns the tenant stored in ctx
func TenantFrom(ctx context.Context) (TenantID, bool) {
	id, ok := ctx.Value(TenantContextKey).(TenantID)
	return id, ok && !id.IsEmpty()
}
