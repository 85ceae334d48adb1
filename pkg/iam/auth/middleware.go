package auth

import (
	"regexp"
	"strings"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokensrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

var bearerPattern = regexp.MustCompile(`(?i)^Bearer\s+([\w\d]+)$`)

// Observer is told the outcome of every authentication
type Observer interface {
	AuthOutcome(outcome string)
}

type requirement struct {
	accesstokensrv.Requirement
	anonymousOK bool
	cookie      bool
}

type Option func(*requirement)

// Scopes demands every one of scopes on the token
func Scopes(scopes ...string) Option {
	return func(r *requirement) { r.Scopes = append(r.Scopes, scopes...) }
}

// Superuser demands a superuser account
func Superuser() Option {
	return func(r *requirement) { r.Superuser = true }
}

// AnonymousOK runs the handler without principal when no usable
// credential was presented
func AnonymousOK() Option {
	return func(r *requirement) { r.anonymousOK = true }
}

// WithCookie also accepts the session cookie
func WithCookie() Option {
	return func(r *requirement) { r.cookie = true }
}

// TokenMiddleware authenticates requests. It must run after the unit of
// work middleware: the token bookkeeping commits with the handler's work.
type TokenMiddleware struct {
	tokens     *accesstokensrv.AccessTokenService
	cookieName string
	observer   Observer
}

func NewTokenMiddleware(tokens *accesstokensrv.AccessTokenService, cookieName string, observer Observer) *TokenMiddleware {
	return &TokenMiddleware{tokens: tokens, cookieName: cookieName, observer: observer}
}

// Require returns the handler enforcing opts
func (m *TokenMiddleware) Require(opts ...Option) fiber.Handler {
	req := requirement{}
	for _, o := range opts {
		o(&req)
	}

	return func(c *fiber.Ctx) error {
		opaque := m.credential(c, req.cookie)
		if opaque == "" {
			if req.anonymousOK {
				m.observe("anonymous")
				return c.Next()
			}
			m.observe(accesstoken.CodeNoCredential.Code)
			return accesstoken.ErrNoCredential()
		}

		u, t, err := m.tokens.Authenticate(c.UserContext(), opaque, req.Requirement, ClientAddr(c))
		if err != nil {
			if req.anonymousOK && anonymousFallback(err) {
				m.observe("anonymous")
				return c.Next()
			}
			var e *errx.Error
			if errx.As(err, &e) && e.Code != "" {
				m.observe(e.Code)
			}
			return err
		}
		m.observe("ok")

		c.Locals(principalKey, &Principal{User: u, Token: t})
		ctx := kernel.WithAuth(c.UserContext(), u.AuthContext(t.ID, t.Scopes))
		ctx = logx.ContextWithFields(ctx, logx.Fields{"user_id": u.ID.String()})
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func (m *TokenMiddleware) credential(c *fiber.Ctx, cookie bool) string {
	for _, h := range []string{fiber.HeaderAuthorization, "X-Authorization"} {
		if match := bearerPattern.FindStringSubmatch(strings.TrimSpace(c.Get(h))); match != nil {
			return match[1]
		}
	}
	if cookie {
		return c.Cookies(m.cookieName)
	}
	return ""
}

func (m *TokenMiddleware) observe(outcome string) {
	if m.observer != nil {
		m.observer.AuthOutcome(outcome)
	}
}

// unknown and expired credentials degrade to anonymous, disabled accounts
// and missing scopes never do
func anonymousFallback(err error) bool {
	return errx.HasCode(err, accesstoken.CodeCredentialNotFound) ||
		errx.HasCode(err, accesstoken.CodeCredentialExpired)
}

// ClientAddr is the address recorded as last_used_from
func ClientAddr(c *fiber.Ctx) string {
	for _, h := range []string{"X-Client-IP", "X-Originating-IP"} {
		if v := strings.TrimSpace(c.Get(h)); v != "" {
			return v
		}
	}
	return c.IP()
}
