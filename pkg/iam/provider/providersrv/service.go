package providersrv

import (
	"context"
	"encoding/json"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// LoginProviderService runs the provider protocol for logins and manages
// the providers linked to an account
type LoginProviderService struct {
	registry *provider.Registry
	repo     provider.Repository
	audit    audit.Service
}

func NewLoginProviderService(registry *provider.Registry, repo provider.Repository, auditSvc audit.Service) *LoginProviderService {
	return &LoginProviderService{registry: registry, repo: repo, audit: auditSvc}
}

// Registry exposes the registered providers
func (s *LoginProviderService) Registry() *provider.Registry {
	return s.registry
}

// Login authenticates raw with the named provider. Disabled accounts fail
// like unknown ones.
func (s *LoginProviderService) Login(ctx context.Context, tenant kernel.TenantID, name string, raw json.RawMessage) (*user.User, error) {
	p, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	v, err := p.Validate(ctx, raw, provider.ModeLogin)
	if err != nil {
		return nil, err
	}
	u, err := p.Login(ctx, tenant, v)
	if err != nil {
		return nil, err
	}
	if !u.CanLogin() {
		return nil, provider.ErrLoginFailed()
	}
	return u, nil
}

// Associate links the named provider to the authenticated user u
func (s *LoginProviderService) Associate(ctx context.Context, u *user.User, name string, raw json.RawMessage) error {
	p, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	v, err := p.Validate(ctx, raw, provider.ModeAssociate)
	if err != nil {
		return err
	}
	if err := p.Associate(ctx, u, v); err != nil {
		return err
	}
	s.audit.LogAccountLinked(ctx, u.ID, u.TenantID, name)
	return nil
}

func (s *LoginProviderService) List(ctx context.Context, userID kernel.UserID) ([]*provider.LoginProvider, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete unlinks a provider. The last provider of an account stays, the
// user could not log in anymore. The count is read under the owner lock, so
// concurrent deletes inside units of work cannot both pass it.
func (s *LoginProviderService) Delete(ctx context.Context, userID kernel.UserID, id string) error {
	if err := s.repo.LockOwner(ctx, userID); err != nil {
		return err
	}
	providers, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	for _, lp := range providers {
		if lp.ID == id {
			found = true
			break
		}
	}
	if !found {
		return provider.ErrNotFound()
	}
	if len(providers) == 1 {
		return provider.ErrLastProvider()
	}
	return s.repo.Delete(ctx, userID, id)
}
