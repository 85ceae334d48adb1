package oauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/oauth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/providerinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store/storetest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok := s[kid]
	if !ok {
		return nil, provider.ErrAuthFailed()
	}
	return k, nil
}

type repos struct {
	users  user.Repository
	links  provider.Repository
	tenant kernel.TenantID
	clock  *kernel.FixedClock
}

func newRepos(t *testing.T) *repos {
	db := storetest.Open(t)
	return &repos{
		users:  userinfra.NewSQLUserRepository(db),
		links:  providerinfra.NewSQLLoginProviderRepository(db),
		tenant: storetest.Tenant(t, db, "acme"),
		clock:  &kernel.FixedClock{T: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)},
	}
}

func (r *repos) user(t *testing.T, email string) *user.User {
	u := user.New(r.tenant, email, "en", r.clock.Now())
	require.NoError(t, r.users.Create(context.Background(), u))
	return u
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) json.RawMessage {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	b, err := json.Marshal(map[string]string{"id_token": s})
	require.NoError(t, err)
	return b
}

func newGoogle(t *testing.T, r *repos) (*oauth.Google, *rsa.PrivateKey) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	g := oauth.NewGoogle(r.users, r.links, staticKeys{"k1": &key.PublicKey}, oauth.GoogleConfig{
		ClientID: "client-1",
		Issuers:  []string{"https://accounts.google.com"},
		Timeout:  time.Second,
		Clock:    r.clock,
	})
	return g, key
}

func googleClaims(r *repos, aud string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            aud,
		"sub":            "google-42",
		"email":          "Ann@Example.com",
		"email_verified": true,
		"exp":            r.clock.Now().Add(time.Hour).Unix(),
		"iat":            r.clock.Now().Unix(),
	}
}

func TestGoogleValidateSignupLoginAndRelink(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	g, key := newGoogle(t, r)

	v, err := g.Validate(ctx, signIDToken(t, key, googleClaims(r, "client-1")), provider.ModeSignup)
	require.NoError(t, err)
	assert.Equal(t, "google-42", v.ProviderID)
	assert.Equal(t, "ann@example.com", v.Email)
	assert.True(t, v.EmailVerified)

	u := r.user(t, v.Email)
	require.NoError(t, g.Finalize(ctx, u, v))

	got, err := g.Login(ctx, r.tenant, v)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	other := r.user(t, "bob@example.com")
	err = g.Finalize(ctx, other, v)
	assert.True(t, errx.HasCode(err, provider.CodeAlreadyLinked))
}

func TestGoogleRejectsForeignAudience(t *testing.T) {
	r := newRepos(t)
	g, key := newGoogle(t, r)

	_, err := g.Validate(context.Background(), signIDToken(t, key, googleClaims(r, "someone-else")), provider.ModeLogin)
	assert.True(t, errx.HasCode(err, provider.CodeAuthFailed))
}

func TestGoogleRejectsExpiredToken(t *testing.T) {
	r := newRepos(t)
	g, key := newGoogle(t, r)
	claims := googleClaims(r, "client-1")
	claims["exp"] = r.clock.Now().Add(-time.Minute).Unix()

	_, err := g.Validate(context.Background(), signIDToken(t, key, claims), provider.ModeLogin)
	assert.True(t, errx.HasCode(err, provider.CodeAuthFailed))
}

func TestUnlinkedExternalAccountFailsLogin(t *testing.T) {
	r := newRepos(t)
	g, key := newGoogle(t, r)

	v, err := g.Validate(context.Background(), signIDToken(t, key, googleClaims(r, "client-1")), provider.ModeLogin)
	require.NoError(t, err)
	_, err = g.Login(context.Background(), r.tenant, v)
	assert.True(t, errx.HasCode(err, provider.CodeLoginFailed))
}

type exchangerFunc func(ctx context.Context, code, redirectURI string) (*oauth.Profile, error)

func (f exchangerFunc) Exchange(ctx context.Context, code, redirectURI string) (*oauth.Profile, error) {
	return f(ctx, code, redirectURI)
}

func TestGitHubExchange(t *testing.T) {
	r := newRepos(t)
	gh := oauth.NewGitHub(r.users, r.links, exchangerFunc(func(_ context.Context, code, _ string) (*oauth.Profile, error) {
		assert.Equal(t, "abc", code)
		return &oauth.Profile{ID: "7", Login: "ann", Email: "ann@example.com"}, nil
	}), r.clock, time.Second)

	v, err := gh.Validate(context.Background(), json.RawMessage(`{"code":"abc"}`), provider.ModeSignup)
	require.NoError(t, err)
	assert.Equal(t, "7", v.ProviderID)
	assert.False(t, v.EmailVerified)
	assert.Equal(t, "ann", v.Data["login"])
}

func TestGitHubExchangeTimeout(t *testing.T) {
	r := newRepos(t)
	gh := oauth.NewGitHub(r.users, r.links, exchangerFunc(func(ctx context.Context, _, _ string) (*oauth.Profile, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), r.clock, 20*time.Millisecond)

	_, err := gh.Validate(context.Background(), json.RawMessage(`{"code":"abc"}`), provider.ModeLogin)
	assert.True(t, errx.HasCode(err, provider.CodeAuthFailed))
}

func TestGitHubRequiresCode(t *testing.T) {
	r := newRepos(t)
	gh := oauth.NewGitHub(r.users, r.links, nil, r.clock, time.Second)

	_, err := gh.Validate(context.Background(), json.RawMessage(`{}`), provider.ModeLogin)
	var e *errx.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Fields, "code")
}
