package scopes

import (
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() *Catalog {
	return NewCatalog(config.Settings{
		AccessTokenScopes:          map[string]string{"admin": "all", "read": "read"},
		SuperuserAccessTokenScopes: map[string]string{"superuser": "tenant"},
		DefaultScopes:              []string{"admin"},
	})
}

func TestVisibleHidesSuperuserScopes(t *testing.T) {
	c := catalog()
	assert.Equal(t, []string{"admin", "read"}, c.Names(false))
	assert.Equal(t, []string{"admin", "read", "superuser"}, c.Names(true))
	assert.Equal(t, []string{"admin"}, c.Defaults())
}

func TestValidate(t *testing.T) {
	c := catalog()

	assert.NoError(t, c.Validate([]string{"read"}, false))
	assert.NoError(t, c.Validate([]string{"read", "superuser"}, true))

	for name, tc := range map[string]struct {
		scopes    []string
		superuser bool
	}{
		"empty":           {nil, false},
		"unknown":         {[]string{"nope"}, true},
		"superuser scope": {[]string{"superuser"}, false},
	} {
		t.Run(name, func(t *testing.T) {
			err := c.Validate(tc.scopes, tc.superuser)
			require.Error(t, err)
			var e *errx.Error
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Fields, "scopes")
		})
	}
}
