package invitationapi

import (
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantapi"
	"github.com/gofiber/fiber/v2"
)

type InvitationHandlers struct {
	invitations *invitationsrv.InvitationService
	mw          *auth.TokenMiddleware
}

func NewInvitationHandlers(invitations *invitationsrv.InvitationService, mw *auth.TokenMiddleware) *InvitationHandlers {
	return &InvitationHandlers{invitations: invitations, mw: mw}
}

func (h *InvitationHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	su := h.mw.Require(auth.Scopes(scopes.Admin), auth.Superuser())
	r.Get("/invitations", uow, su, h.List)
	r.Post("/invitations", uow, su, h.Create)
	r.Get("/invitations/:id", uow, su, h.Get)
	r.Delete("/invitations/:id", uow, su, h.Delete)
}

func (h *InvitationHandlers) List(c *fiber.Ctx) error {
	invitations, err := h.invitations.List(c.UserContext(), tenantapi.TenantID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invitations": invitations})
}

func (h *InvitationHandlers) Create(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var form invitationsrv.CreateForm
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&form); err != nil {
			return errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
		}
	}
	inv, err := h.invitations.Create(c.UserContext(), p.User, form)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"invitation": inv})
}

func (h *InvitationHandlers) Get(c *fiber.Ctx) error {
	inv, err := h.invitations.Get(c.UserContext(), tenantapi.TenantID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invitation": inv})
}

func (h *InvitationHandlers) Delete(c *fiber.Ctx) error {
	if err := h.invitations.Delete(c.UserContext(), tenantapi.TenantID(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}
