package signupapi

import (
	"encoding/json"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup/signupsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantapi"
	"github.com/gofiber/fiber/v2"
)

type SignupHandlers struct {
	signups *signupsrv.SignupService
	mw      *auth.TokenMiddleware
	cookie  auth.SessionCookie
}

func NewSignupHandlers(signups *signupsrv.SignupService, mw *auth.TokenMiddleware, cookie auth.SessionCookie) *SignupHandlers {
	return &SignupHandlers{signups: signups, mw: mw, cookie: cookie}
}

func (h *SignupHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	r.Post("/signup/:provider", uow, h.Signup)
	r.Get("/confirm-signup", uow, h.Confirm)

	su := h.mw.Require(auth.Scopes(scopes.Admin), auth.Superuser())
	r.Get("/signup-requests", uow, su, h.ListRequests)
	r.Post("/signup-requests/:id", uow, su, h.Approve)
	r.Delete("/signup-requests/:id", uow, su, h.Reject)
}

func (h *SignupHandlers) Signup(c *fiber.Ctx) error {
	res, err := h.signups.Submit(c.UserContext(), tenantapi.TenantID(c), c.Params("provider"),
		json.RawMessage(c.Body()), client(c))
	if err != nil {
		return err
	}
	return h.respond(c, res)
}

// Confirm finishes a signup from the mailed link
func (h *SignupHandlers) Confirm(c *fiber.Ctx) error {
	res, err := h.signups.Confirm(c.UserContext(), tenantapi.TenantID(c), c.Query("code"), client(c))
	if err != nil {
		return err
	}
	return h.respond(c, res)
}

func (h *SignupHandlers) ListRequests(c *fiber.Ctx) error {
	requests, err := h.signups.ListRequests(c.UserContext(), tenantapi.TenantID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"requests": requests})
}

func (h *SignupHandlers) Approve(c *fiber.Ctx) error {
	if err := h.signups.Approve(c.UserContext(), tenantapi.TenantID(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *SignupHandlers) Reject(c *fiber.Ctx) error {
	if err := h.signups.Reject(c.UserContext(), tenantapi.TenantID(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *SignupHandlers) respond(c *fiber.Ctx, res *signupsrv.Result) error {
	switch res.Outcome {
	case signupsrv.Pending:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "approval-pending"})
	case signupsrv.ConfirmationSent:
		return c.JSON(fiber.Map{"message": "please-confirm"})
	}
	h.cookie.Set(c, res.Token)
	return c.Status(fiber.StatusCreated).JSON(auth.Profile{User: res.User, AccessToken: res.Token})
}

func client(c *fiber.Ctx) signupsrv.Client {
	return signupsrv.Client{IP: auth.ClientAddr(c), UserAgent: c.Get(fiber.HeaderUserAgent)}
}
