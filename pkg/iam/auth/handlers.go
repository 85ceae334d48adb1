package auth

import (
	"encoding/json"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokensrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/providersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantapi"
	"github.com/gofiber/fiber/v2"
)

// loginOptions are the session fields of a login body. Everything else in
// the body belongs to the provider.
type loginOptions struct {
	Trusted   bool           `json:"trusted"`
	ExtraData map[string]any `json:"extra_data"`
}

// AuthHandlers serves login, logout and the public client settings
type AuthHandlers struct {
	providers *providersrv.LoginProviderService
	tokens    *accesstokensrv.AccessTokenService
	mw        *TokenMiddleware
	audit     audit.Service
	settings  config.Settings
	cookie    SessionCookie
}

func NewAuthHandlers(
	providers *providersrv.LoginProviderService,
	tokens *accesstokensrv.AccessTokenService,
	mw *TokenMiddleware,
	auditSvc audit.Service,
	cfg *config.Config,
) *AuthHandlers {
	return &AuthHandlers{
		providers: providers,
		tokens:    tokens,
		mw:        mw,
		audit:     auditSvc,
		settings:  cfg.Settings,
		cookie:    NewSessionCookie(cfg),
	}
}

func (h *AuthHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	r.Get("/settings", h.Settings)
	r.Get("/login", uow, h.mw.Require(WithCookie()), h.ListProviders)
	r.Post("/login/:provider", uow, h.mw.Require(AnonymousOK()), h.Login)
	r.Delete("/login/:id", uow, h.mw.Require(), h.DeleteProvider)
	r.Post("/logout", uow, h.mw.Require(WithCookie()), h.Logout)
}

// Settings returns the client settings with the enabled providers
func (h *AuthHandlers) Settings(c *fiber.Ctx) error {
	out := fiber.Map{}
	for k, v := range h.settings.ClientSettings {
		out[k] = v
	}
	out["providers"] = h.providers.Registry().Names()
	out["languages"] = h.settings.Languages
	return c.JSON(out)
}

func (h *AuthHandlers) ListProviders(c *fiber.Ctx) error {
	p, err := MustPrincipal(c)
	if err != nil {
		return err
	}
	providers, err := h.providers.List(c.UserContext(), p.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"login_providers": providers})
}

// Login authenticates with the named provider and opens a session. An
// authenticated caller links the provider to its account instead.
func (h *AuthHandlers) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()
	name := c.Params("provider")
	raw := json.RawMessage(c.Body())

	var opts loginOptions
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
		}
	}

	if p, ok := PrincipalFrom(c); ok {
		if err := h.providers.Associate(ctx, p.User, name, raw); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "success"})
	}

	tenant := tenantapi.TenantID(c)
	u, err := h.providers.Login(ctx, tenant, name, raw)
	if err != nil {
		h.audit.LogLoginAttempt(ctx, "", tenant, name, false, ClientAddr(c), c.Get(fiber.HeaderUserAgent))
		return err
	}

	issued, err := h.tokens.Issue(ctx, u, accesstokensrv.LoginRequest{
		Provider:  name,
		Trusted:   opts.Trusted,
		Extra:     opts.ExtraData,
		IP:        ClientAddr(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}
	h.audit.LogLoginAttempt(ctx, u.ID, u.TenantID, name, true, ClientAddr(c), c.Get(fiber.HeaderUserAgent))

	h.cookie.Set(c, issued)
	return c.Status(fiber.StatusCreated).JSON(Profile{User: u, AccessToken: issued})
}

func (h *AuthHandlers) DeleteProvider(c *fiber.Ctx) error {
	p, err := MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.providers.Delete(c.UserContext(), p.User.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

// Logout invalidates the presented token and drops the cookie
func (h *AuthHandlers) Logout(c *fiber.Ctx) error {
	p, err := MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.tokens.Revoke(c.UserContext(), p.Token, p.User.ID); err != nil {
		return err
	}
	h.audit.LogLogout(c.UserContext(), p.User.ID, p.User.TenantID, ClientAddr(c))

	h.cookie.Clear(c)
	return c.JSON(fiber.Map{"message": "success"})
}
