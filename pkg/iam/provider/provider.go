// Package provider defines the protocol every identity provider speaks:
// validate a payload, log a user in, attach the provider to a new account
// and associate it with an existing one.
package provider

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/google/uuid"
)

// Mode tells Validate which workflow the payload belongs to
type Mode int

const (
	ModeLogin Mode = iota + 1
	ModeSignup
	ModeAssociate
)

// Validated is the provider's view of a payload. It is sealed into signup
// requests and confirmation links, so Data must stay JSON and must never
// hold a plain secret.
type Validated struct {
	ProviderID    string         `json:"provider_id,omitempty"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	Data          map[string]any `json:"data,omitempty"`

	// Secret lives for one request only, e.g. a password being checked
	Secret string `json:"-"`
}

// Provider is one authentication method
type Provider interface {
	Name() string

	// Validate checks raw and extracts what the other steps need
	Validate(ctx context.Context, raw json.RawMessage, mode Mode) (*Validated, error)

	// Login returns the account v authenticates. Every failure that would
	// tell whether an account exists is ErrLoginFailed.
	Login(ctx context.Context, tenant kernel.TenantID, v *Validated) (*user.User, error)

	// Finalize attaches the provider to a freshly created user
	Finalize(ctx context.Context, u *user.User, v *Validated) error

	// Associate attaches the provider to an existing, authenticated user
	Associate(ctx context.Context, u *user.User, v *Validated) error
}

// Registry maps names to providers. It is built once at startup.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered as name
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider().WithDetail("provider", name)
	}
	return p, nil
}

// Names returns the sorted registered names
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoginProvider links a user to one external identity
type LoginProvider struct {
	ID         string            `db:"id" json:"id"`
	UserID     kernel.UserID     `db:"user_id" json:"-"`
	Provider   string            `db:"provider" json:"provider"`
	ProviderID string            `db:"provider_id" json:"-"`
	Data       kernel.Attributes `db:"data" json:"-"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// NewLoginProvider builds a link that is not persisted yet
func NewLoginProvider(u *user.User, name, providerID string, data kernel.Attributes, now time.Time) *LoginProvider {
	if data == nil {
		data = kernel.Attributes{}
	}
	return &LoginProvider{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		Provider:   name,
		ProviderID: providerID,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Repository persists login providers
type Repository interface {
	// Create fails with ErrAlreadyLinked when (provider, provider_id) exists
	Create(ctx context.Context, lp *LoginProvider) error
	FindByProviderID(ctx context.Context, provider, providerID string) (*LoginProvider, error)
	FindForUser(ctx context.Context, userID kernel.UserID, provider string) (*LoginProvider, error)
	ListByUser(ctx context.Context, userID kernel.UserID) ([]*LoginProvider, error)
	CountByUser(ctx context.Context, userID kernel.UserID) (int, error)
	UpdateData(ctx context.Context, lp *LoginProvider) error
	// LockOwner holds a write lock on the account until the unit of work
	// ends, so provider changes of one user run one after another
	LockOwner(ctx context.Context, userID kernel.UserID) error
	Delete(ctx context.Context, userID kernel.UserID, id string) error
}
