package passwordapi

import (
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/password"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantapi"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

type resetRequest struct {
	Email string `json:"email"`
}

func (r resetRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Email, formx.Email...))
}

type resetForm struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (f resetForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required),
		validation.Field(&f.Code, validation.Required),
		validation.Field(&f.Password, formx.Password...),
	)
}

type changeForm struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
}

func (f changeForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.CurrentPassword, validation.Required),
		validation.Field(&f.Password, formx.Password...),
	)
}

type PasswordHandlers struct {
	provider *password.Provider
	mw       *auth.TokenMiddleware
}

func NewPasswordHandlers(p *password.Provider, mw *auth.TokenMiddleware) *PasswordHandlers {
	return &PasswordHandlers{provider: p, mw: mw}
}

func (h *PasswordHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	r.Post("/password/reset", uow, h.RequestReset)
	r.Put("/password/reset", uow, h.Reset)
	r.Put("/password", uow, h.mw.Require(auth.Scopes(scopes.Admin)), h.Change)
}

// RequestReset answers the same whether or not the address has an account
func (h *PasswordHandlers) RequestReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := formx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.provider.RequestReset(c.UserContext(), tenantapi.TenantID(c), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *PasswordHandlers) Reset(c *fiber.Ctx) error {
	var f resetForm
	if err := formx.Bind(c, &f); err != nil {
		return err
	}
	err := h.provider.ResetPassword(c.UserContext(), tenantapi.TenantID(c), kernel.UserID(f.ID), f.Code, f.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *PasswordHandlers) Change(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var f changeForm
	if err := formx.Bind(c, &f); err != nil {
		return err
	}
	if err := h.provider.ChangePassword(c.UserContext(), p.User, f.CurrentPassword, f.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}
