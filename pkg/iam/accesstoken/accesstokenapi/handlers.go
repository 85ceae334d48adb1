package accesstokenapi

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokensrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// UserFinder resolves the target of the superuser routes
type UserFinder interface {
	FindByID(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) (*user.User, error)
}

type createRequest struct {
	Scopes      []string   `json:"scopes"`
	ValidUntil  *time.Time `json:"valid_until"`
	Description string     `json:"description"`
}

func (r createRequest) form() accesstoken.APITokenForm {
	return accesstoken.APITokenForm{Scopes: r.Scopes, ValidUntil: r.ValidUntil, Description: r.Description}
}

type AccessTokenHandlers struct {
	tokens  *accesstokensrv.AccessTokenService
	catalog *scopes.Catalog
	users   UserFinder
	mw      *auth.TokenMiddleware
}

func NewAccessTokenHandlers(tokens *accesstokensrv.AccessTokenService, catalog *scopes.Catalog, users UserFinder, mw *auth.TokenMiddleware) *AccessTokenHandlers {
	return &AccessTokenHandlers{tokens: tokens, catalog: catalog, users: users, mw: mw}
}

func (h *AccessTokenHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	own := h.mw.Require(auth.Scopes(scopes.Admin))
	r.Get("/access-tokens", uow, own, h.List)
	r.Post("/access-tokens", uow, own, h.Create)
	r.Delete("/access-tokens/:id", uow, own, h.Delete)
	r.Get("/access-token-scopes", uow, h.mw.Require(), h.Scopes)

	su := h.mw.Require(auth.Scopes(scopes.Admin), auth.Superuser())
	r.Get("/users/:id/access-tokens", uow, su, h.ListForUser)
	r.Post("/users/:id/access-tokens", uow, su, h.CreateForUser)
}

// List returns the caller's tokens that still authenticate
func (h *AccessTokenHandlers) List(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	return h.list(c, p.User.ID)
}

func (h *AccessTokenHandlers) Create(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	issued, err := h.tokens.CreateAPIToken(c.UserContext(), p.User, req.form())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(issued)
}

func (h *AccessTokenHandlers) Delete(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id := kernel.AccessTokenID(c.Params("id"))
	if err := h.tokens.Delete(c.UserContext(), p.User, p.Token, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

// Scopes lists the scopes the caller may put on a token
func (h *AccessTokenHandlers) Scopes(c *fiber.Ctx) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"scopes": h.catalog.Visible(p.User.Superuser)})
}

func (h *AccessTokenHandlers) ListForUser(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return err
	}
	return h.list(c, target.ID)
}

// CreateForUser mints a maintenance token letting a superuser act as the
// target for a short while
func (h *AccessTokenHandlers) CreateForUser(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	issued, err := h.tokens.IssueMaintenance(c.UserContext(), target, req.form())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(issued)
}

func (h *AccessTokenHandlers) list(c *fiber.Ctx, id kernel.UserID) error {
	tokens, err := h.tokens.ListUsable(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"access_tokens": tokens})
}

func (h *AccessTokenHandlers) target(c *fiber.Ctx) (*user.User, error) {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return nil, err
	}
	return h.users.FindByID(c.UserContext(), p.User.TenantID, kernel.UserID(c.Params("id")))
}

func bind(c *fiber.Ctx, out *createRequest) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
	}
	return nil
}
