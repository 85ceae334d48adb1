package tenantsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	gocache "github.com/patrickmn/go-cache"
)

// TenantService creates tenants and resolves names with a read-through cache
type TenantService struct {
	repo  tenant.Repository
	clock kernel.Clock
	cache *gocache.Cache
}

func NewTenantService(repo tenant.Repository, clock kernel.Clock, ttl time.Duration) *TenantService {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &TenantService{repo: repo, clock: clock, cache: gocache.New(ttl, 2*ttl)}
}

func (s *TenantService) Create(ctx context.Context, name string) (*tenant.Tenant, error) {
	t, err := tenant.New(name, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	logx.WithContext(ctx).WithFields(logx.Fields{"tenant_id": t.ID, "name": t.Name}).Info("tenant created")
	return t, nil
}

// Resolve returns the tenant called name. Misses are not cached so a tenant
// created by another process shows up right away.
func (s *TenantService) Resolve(ctx context.Context, name string) (*tenant.Tenant, error) {
	if v, ok := s.cache.Get(name); ok {
		return v.(*tenant.Tenant), nil
	}
	t, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(name, t)
	return t, nil
}

func (s *TenantService) List(ctx context.Context) ([]*tenant.Tenant, error) {
	return s.repo.List(ctx)
}
