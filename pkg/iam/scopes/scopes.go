// Package scopes holds the catalog of access token scopes a tenant offers.
package scopes

import (
	"sort"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

// Admin is the scope of a regular login session
const Admin = "admin"

// Catalog is read only after construction
type Catalog struct {
	regular   map[string]string
	superuser map[string]string
	defaults  []string
}

func NewCatalog(s config.Settings) *Catalog {
	c := &Catalog{
		regular:   make(map[string]string, len(s.AccessTokenScopes)),
		superuser: make(map[string]string, len(s.SuperuserAccessTokenScopes)),
		defaults:  append([]string(nil), s.DefaultScopes...),
	}
	for k, v := range s.AccessTokenScopes {
		c.regular[k] = v
	}
	for k, v := range s.SuperuserAccessTokenScopes {
		c.superuser[k] = v
	}
	return c
}

// Defaults are the scopes of tokens minted by a login
func (c *Catalog) Defaults() []string {
	return append([]string(nil), c.defaults...)
}

// Visible returns name to description of every scope the caller may request
func (c *Catalog) Visible(superuser bool) map[string]string {
	out := make(map[string]string, len(c.regular)+len(c.superuser))
	for k, v := range c.regular {
		out[k] = v
	}
	if superuser {
		for k, v := range c.superuser {
			out[k] = v
		}
	}
	return out
}

// Names returns the sorted names of Visible
func (c *Catalog) Names(superuser bool) []string {
	visible := c.Visible(superuser)
	out := make([]string, 0, len(visible))
	for k := range visible {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks a requested scope list. Superuser only scopes are refused
// for everybody else.
func (c *Catalog) Validate(requested []string, superuser bool) error {
	fields := errx.FieldErrors{}
	if len(requested) == 0 {
		fields.Add("scopes", "at least one scope is required")
	}
	seen := map[string]bool{}
	for _, s := range requested {
		if seen[s] {
			continue
		}
		seen[s] = true
		if _, ok := c.regular[s]; ok {
			continue
		}
		if _, ok := c.superuser[s]; ok {
			if !superuser {
				fields.Add("scopes", "scope "+s+" requires a superuser")
			}
			continue
		}
		fields.Add("scopes", "unknown scope "+s)
	}
	if len(fields) > 0 {
		return errx.Invalid(fields)
	}
	return nil
}
