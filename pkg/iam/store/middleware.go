package store

import (
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
)

// Middleware opens the request's unit of work. Everything the remaining
// handlers write commits together when they succeed and rolls back when any
// of them returns an error or panics.
func Middleware(db *sqlx.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if _, ok := From(ctx); ok {
			return c.Next()
		}

		u, err := Begin(ctx, db)
		if err != nil {
			return err
		}
		c.SetUserContext(WithUnitOfWork(ctx, u))

		// covers handler errors and panics alike, a no-op after commit
		defer func() {
			if rbErr := u.Rollback(); rbErr != nil {
				logx.WithError(rbErr).WithField("path", c.Path()).Error("request rollback failed")
			}
		}()

		if err := c.Next(); err != nil {
			return err
		}
		return u.Commit(ctx)
	}
}
