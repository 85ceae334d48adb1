package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"AUTH_ENVELOPE_SECRET": "0123456789abcdef0123",
	})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Auth.ShortValidity)
	assert.Equal(t, 7*24*60, cfg.Auth.LongValidityMinutes())
	assert.Equal(t, 60*time.Minute, cfg.Auth.SuperuserTokenValidity)
	assert.Equal(t, 100, cfg.Auth.MaxAccessTokens)
	assert.Equal(t, 4, cfg.Throttle.Ceiling)
	assert.Equal(t, time.Hour, cfg.Throttle.Spacing)
	assert.Equal(t, []string{"admin"}, cfg.Settings.DefaultScopes)
	assert.Equal(t, "X-Tenant", cfg.Tenancy.Header)
	assert.Equal(t, []string{"mail", "default"}, cfg.Jobx.Queues)
	assert.Equal(t, cfg.Auth.EnvelopeSecret, cfg.Auth.SignupSalt)
}

func TestParseRejectsMissingSecret(t *testing.T) {
	_, err := Parse(map[string]string{})
	require.Error(t, err)

	var e *errx.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Fields, "AUTH_ENVELOPE_SECRET")
}

func TestParseSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
access_token_scopes:
  admin: everything
  read: read only
default_scopes: [read]
languages: [en]
client_settings:
  signup_enabled: true
`), 0o600))

	cfg, err := Parse(map[string]string{
		"AUTH_ENVELOPE_SECRET": "0123456789abcdef0123",
		"SETTINGS_FILE":        path,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"read"}, cfg.Settings.DefaultScopes)
	assert.Equal(t, []string{"en"}, cfg.Settings.Languages)
	assert.Equal(t, true, cfg.Settings.ClientSettings["signup_enabled"])
	// not in the file, default kept
	assert.Contains(t, cfg.Settings.SuperuserAccessTokenScopes, "superuser")
}

func TestParseRejectsUnknownDefaultScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_scopes: [nope]\n"), 0o600))

	_, err := Parse(map[string]string{
		"AUTH_ENVELOPE_SECRET": "0123456789abcdef0123",
		"SETTINGS_FILE":        path,
	})
	require.Error(t, err)
}
