package userapi

import (
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

type emailChangeRequest struct {
	Email string `json:"email"`
}

func (r emailChangeRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Email, validation.Required))
}

type emailChangeConfirm struct {
	Code string `json:"code"`
}

func (r emailChangeConfirm) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Code, validation.Required))
}

type UserHandlers struct {
	users *usersrv.UserService
	mw    *auth.TokenMiddleware
}

func NewUserHandlers(users *usersrv.UserService, mw *auth.TokenMiddleware) *UserHandlers {
	return &UserHandlers{users: users, mw: mw}
}

func (h *UserHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	admin := h.mw.Require(auth.Scopes(scopes.Admin))
	r.Get("/user", uow, h.mw.Require(auth.WithCookie()), h.Profile)
	r.Patch("/user", uow, admin, h.UpdateProfile)
	r.Post("/change-email", uow, admin, h.RequestEmailChange)
	r.Put("/change-email", uow, admin, h.ConfirmEmailChange)

	su := h.mw.Require(auth.Scopes(scopes.Admin), auth.Superuser())
	r.Get("/users", uow, su, h.List)
	r.Post("/users", uow, su, h.Create)
	r.Get("/users/:id", uow, su, h.Get)
	r.Patch("/users/:id", uow, su, h.Update)
	r.Delete("/users/:id", uow, su, h.Delete)
}

// Profile returns the caller with the token of the request
func (h *UserHandlers) Profile(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(auth.Profile{User: p.User, AccessToken: p.Token})
}

func (h *UserHandlers) UpdateProfile(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var patch usersrv.ProfilePatch
	if err := parse(c, &patch); err != nil {
		return err
	}
	u, err := h.users.UpdateProfile(c.UserContext(), p.User, patch)
	if err != nil {
		return err
	}
	return c.JSON(auth.Profile{User: u, AccessToken: p.Token})
}

func (h *UserHandlers) RequestEmailChange(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var req emailChangeRequest
	if err := formx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.users.RequestEmailChange(c.UserContext(), p.User, req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "verification-mail-sent"})
}

func (h *UserHandlers) ConfirmEmailChange(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var req emailChangeConfirm
	if err := formx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.users.ConfirmEmailChange(c.UserContext(), p.User, req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *UserHandlers) List(c *fiber.Ctx) error {
	var q usersrv.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return errx.Invalid(errx.FieldErrors{"query": {"malformed query"}})
	}
	page, err := h.users.List(c.UserContext(), tenantapi.TenantID(c), q)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *UserHandlers) Create(c *fiber.Ctx) error {
	var form usersrv.CreateForm
	if err := parse(c, &form); err != nil {
		return err
	}
	u, err := h.users.Create(c.UserContext(), tenantapi.TenantID(c), form)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": u})
}

func (h *UserHandlers) Get(c *fiber.Ctx) error {
	u, err := h.users.Get(c.UserContext(), tenantapi.TenantID(c), kernel.UserID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": u})
}

func (h *UserHandlers) Update(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var patch usersrv.AdminPatch
	if err := parse(c, &patch); err != nil {
		return err
	}
	u, err := h.users.Update(c.UserContext(), p.User, kernel.UserID(c.Params("id")), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": u})
}

func (h *UserHandlers) Delete(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), p.User, kernel.UserID(c.Params("id"))); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

// parse decodes the body only, the service validates
func parse(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
	}
	return nil
}
