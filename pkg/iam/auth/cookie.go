package auth

import (
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/gofiber/fiber/v2"
)

// SessionCookie mirrors login tokens into an http only cookie for
// browser clients
type SessionCookie struct {
	Name   string
	Secure bool
}

func NewSessionCookie(cfg *config.Config) SessionCookie {
	return SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Server.CookieSecure}
}

// Set stores issued. Renewing and endless sessions get a browser session
// cookie, the others expire with the token.
func (s SessionCookie) Set(c *fiber.Ctx, issued *accesstoken.Issued) {
	cookie := s.cookie(issued.Token)
	if issued.ValidUntil != nil && !issued.RenewsWhenUsed {
		cookie.Expires = *issued.ValidUntil
	}
	c.Cookie(cookie)
}

func (s SessionCookie) Clear(c *fiber.Ctx) {
	cookie := s.cookie("")
	cookie.Expires = time.Unix(0, 0)
	c.Cookie(cookie)
}

func (s SessionCookie) cookie(value string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     s.Name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
