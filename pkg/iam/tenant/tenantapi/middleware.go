package tenantapi

import (
	"strings"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

const localsKey = "tenant_id"

// Resolver picks the request's tenant from the configured header, falling
// back to the default tenant. Unknown names answer 404.
func Resolver(svc *tenantsrv.TenantService, cfg config.TenancyConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := strings.TrimSpace(c.Get(cfg.Header))
		if name == "" {
			name = cfg.DefaultTenant
		}

		t, err := svc.Resolve(c.UserContext(), name)
		if err != nil {
			return err
		}

		ctx := kernel.WithTenant(c.UserContext(), t.ID)
		ctx = logx.ContextWithFields(ctx, logx.Fields{"tenant_id": t.ID.String()})
		c.SetUserContext(ctx)
		c.Locals(localsKey, t.ID)
		return c.Next()
	}
}

// TenantID returns the tenant resolved for c
func TenantID(c *fiber.Ctx) kernel.TenantID {
	id, _ := c.Locals(localsKey).(kernel.TenantID)
	return id
}
