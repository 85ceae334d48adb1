package emailrequestapi

import (
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// BlockHandlers serves the block links sent with throttled e-mails
type BlockHandlers struct {
	blocker *emailrequest.Blocker
}

func NewBlockHandlers(blocker *emailrequest.Blocker) *BlockHandlers {
	return &BlockHandlers{blocker: blocker}
}

// RegisterRoutes mounts GET /block-email behind the unit of work middleware
func (h *BlockHandlers) RegisterRoutes(r fiber.Router, uow fiber.Handler) {
	r.Get("/block-email", uow, h.Block)
}

func (h *BlockHandlers) Block(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return errx.Invalid(errx.FieldErrors{"code": {"cannot be blank"}})
	}

	blocked, err := h.blocker.BlockByCode(c.UserContext(), code)
	if err != nil {
		return err
	}
	if !blocked {
		return c.JSON(fiber.Map{"message": "already-blocked"})
	}

	logx.WithContext(c.UserContext()).WithField("audit_event", "email_blocked").Info("Audit: e-mail blocked")
	return c.JSON(fiber.Map{"message": "blocked"})
}
