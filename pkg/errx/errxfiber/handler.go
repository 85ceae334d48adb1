// Package errxfiber translates errors into fiber responses. It is the only
// place where error types become wire status codes.
package errxfiber

import (
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler returns a fiber.ErrorHandler answering with errx.HTTPErrorResponse.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errx.HTTPErrorResponse{
				Message: fe.Message,
				Code:    "HTTP_ERROR",
			})
		}

		status, body := errx.Resolve(err, debug)

		entry := logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"status":     status,
			"request_id": c.Get(fiber.HeaderXRequestID),
		}).WithError(err)
		if status >= fiber.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request rejected")
		}

		return c.Status(status).JSON(body)
	}
}
