package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
)

const GoogleName = "google"

// KeySource resolves the signing key of an ID token
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

type googleClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type GoogleConfig struct {
	ClientID string
	Issuers  []string
	Timeout  time.Duration
	Clock    kernel.Clock
}

// Google signs users in with the ID token issued to the client
type Google struct {
	linker
	keys KeySource
	cfg  GoogleConfig
}

func NewGoogle(users user.Repository, repo provider.Repository, keys KeySource, cfg GoogleConfig) *Google {
	return &Google{
		linker: newLinker(GoogleName, users, repo, cfg.Clock, cfg.Timeout),
		keys:   keys,
		cfg:    cfg,
	}
}

func (g *Google) Validate(ctx context.Context, raw json.RawMessage, _ provider.Mode) (*provider.Validated, error) {
	var in struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
	}
	if err := validation.Validate(in.IDToken, validation.Required); err != nil {
		return nil, errx.Invalid(errx.FieldErrors{"id_token": {err.Error()}})
	}

	claims, err := call(ctx, &g.linker, func(ctx context.Context) (*googleClaims, error) {
		return g.verify(ctx, in.IDToken)
	})
	if err != nil {
		return nil, err
	}

	return &provider.Validated{
		ProviderID:    claims.Subject,
		Email:         kernel.NormalizeEmail(claims.Email),
		EmailVerified: claims.EmailVerified,
		Data: map[string]any{
			"name":    claims.Name,
			"picture": claims.Picture,
		},
	}, nil
}

func (g *Google) verify(ctx context.Context, raw string) (*googleClaims, error) {
	claims := &googleClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(g.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.clock.Now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return g.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, provider.ErrAuthFailed().WithDetail("provider", GoogleName).WithCause(err)
	}

	issuerOK := false
	for _, iss := range g.cfg.Issuers {
		if claims.Issuer == iss {
			issuerOK = true
			break
		}
	}
	if !issuerOK || claims.Subject == "" {
		return nil, provider.ErrAuthFailed().WithDetail("provider", GoogleName).WithDetail("reason", "issuer or subject")
	}
	return claims, nil
}
