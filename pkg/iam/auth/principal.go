// Package auth turns bearer access tokens into an authenticated principal
// and serves the login, logout and settings endpoints.
package auth

import (
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// Principal is the caller of an authenticated request
type Principal struct {
	User  *user.User
	Token *accesstoken.AccessToken
}

// PrincipalFrom returns the principal of c. Anonymous requests have none.
func PrincipalFrom(c *fiber.Ctx) (*Principal, bool) {
	p, ok := c.Locals(principalKey).(*Principal)
	return p, ok && p != nil
}

// MustPrincipal returns the principal of c or ErrNoCredential
func MustPrincipal(c *fiber.Ctx) (*Principal, error) {
	p, ok := PrincipalFrom(c)
	if !ok {
		return nil, accesstoken.ErrNoCredential()
	}
	return p, nil
}

// Profile is the answer of a login and of GET /user
type Profile struct {
	User        *user.User `json:"user"`
	AccessToken any        `json:"access_token"`
}
