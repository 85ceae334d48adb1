package iamcontainer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamcontainer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer/mailertest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/metrics"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store/storetest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pw = "correct horse battery"

type harness struct {
	t      *testing.T
	app    *fiber.App
	db     *sqlx.DB
	c      *iamcontainer.Container
	mails  *mailertest.Recorder
	clock  *kernel.FixedClock
	tenant kernel.TenantID
}

func newHarness(t *testing.T, env map[string]string, tweak ...func(*config.Config)) *harness {
	t.Helper()
	db := storetest.Open(t)

	environ := map[string]string{
		"AUTH_ENVELOPE_SECRET": "0123456789abcdef0123456789abcdef",
		"DB_DRIVER":            "sqlite",
		"AUTH_BCRYPT_COST":     "4",
	}
	for k, v := range env {
		environ[k] = v
	}
	cfg, err := config.Parse(environ)
	require.NoError(t, err)
	for _, fn := range tweak {
		fn(cfg)
	}

	h := &harness{
		t:      t,
		db:     db,
		mails:  &mailertest.Recorder{},
		clock:  &kernel.FixedClock{T: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		tenant: storetest.Tenant(t, db, cfg.Tenancy.DefaultTenant),
	}
	h.c, err = iamcontainer.New(context.Background(), iamcontainer.Deps{
		DB:       db,
		Cfg:      cfg,
		Enqueuer: h.mails,
		Metrics:  metrics.New(),
		Clock:    h.clock,
	})
	require.NoError(t, err)

	h.app = fiber.New(fiber.Config{ErrorHandler: errxfiber.ErrorHandler(false)})
	h.c.RegisterOperational(h.app)
	h.c.RegisterRoutes(h.app)

	ok := func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"message": "success"}) }
	uow := store.Middleware(db)
	h.app.Get("/scoped/a", uow, h.c.Middleware.Require(auth.Scopes("a")), ok)
	h.app.Get("/scoped/a-c", uow, h.c.Middleware.Require(auth.Scopes("a", "c")), ok)
	return h
}

type response struct {
	status int
	body   map[string]any
	raw    string
}

func (r response) str(path ...string) string {
	var cur any = r.body
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[p]
	}
	s, _ := cur.(string)
	return s
}

func (r response) code() string { return r.str("code") }

func (h *harness) call(method, path string, body any, token string) response {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	out := response{status: resp.StatusCode, raw: string(raw)}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

// seed creates an account with a password the way the CLI does
func (h *harness) seed(email string, superuser bool) *user.User {
	h.t.Helper()
	ctx := context.Background()
	u, err := h.c.Users.Create(ctx, h.tenant, usersrv.CreateForm{Email: email, Language: "en", Superuser: superuser})
	require.NoError(h.t, err)

	raw, err := json.Marshal(map[string]string{"email": email, "password": pw})
	require.NoError(h.t, err)
	v, err := h.c.Password.Validate(ctx, raw, provider.ModeSignup)
	require.NoError(h.t, err)
	require.NoError(h.t, h.c.Password.Finalize(ctx, u, v))
	return u
}

func (h *harness) login(email string, trusted bool) string {
	h.t.Helper()
	res := h.call(fiber.MethodPost, "/login/password", map[string]any{"email": email, "password": pw, "trusted": trusted}, "")
	require.Equal(h.t, fiber.StatusCreated, res.status, res.raw)
	token := res.str("access_token", "token")
	require.NotEmpty(h.t, token)
	return token
}

func (h *harness) lastMail(template, to string) *mailer.Mail {
	h.t.Helper()
	m := h.mails.Last(template, to)
	require.NotNil(h.t, m, "no %s mail to %s", template, to)
	return m
}

func mailString(m *mailer.Mail, key string) string {
	s, _ := m.Data[key].(string)
	return s
}

func TestPasswordSignupConfirmAndLogin(t *testing.T) {
	h := newHarness(t, nil)

	res := h.call(fiber.MethodPost, "/signup/password", map[string]any{
		"email": "Ann@Example.com", "password": pw, "language": "en",
	}, "")
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "please-confirm", res.str("message"))

	code := mailString(h.lastMail(mailer.SignupConfirmation, "ann@example.com"), "Code")
	require.NotEmpty(t, code)

	res = h.call(fiber.MethodGet, "/confirm-signup?code="+code, nil, "")
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	assert.Equal(t, "ann@example.com", res.str("user", "email"))
	assert.NotEmpty(t, res.str("access_token", "token"))
	assert.NotNil(t, h.mails.Last(mailer.Welcome, "ann@example.com"))

	res = h.call(fiber.MethodGet, "/confirm-signup?code="+code, nil, "")
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, cryptotoken.CodeAlreadyRedeemed.Code, res.code())

	h.login("ann@example.com", false)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)

	unknown := h.call(fiber.MethodPost, "/login/password", map[string]any{"email": "nobody@example.com", "password": pw}, "")
	wrong := h.call(fiber.MethodPost, "/login/password", map[string]any{"email": "ann@example.com", "password": "not the password"}, "")

	assert.Equal(t, fiber.StatusNotFound, unknown.status)
	assert.Equal(t, unknown.status, wrong.status)
	assert.Equal(t, unknown.raw, wrong.raw)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)
	short := h.login("ann@example.com", false)
	long := h.login("ann@example.com", true)

	h.clock.Advance(31 * time.Minute)

	res := h.call(fiber.MethodGet, "/user", nil, short)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
	assert.Equal(t, accesstoken.CodeCredentialExpired.Code, res.code())

	res = h.call(fiber.MethodGet, "/user", nil, long)
	assert.Equal(t, fiber.StatusOK, res.status, res.raw)
}

func TestUseSlidesTheExpiryWindow(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)
	token := h.login("ann@example.com", false)

	h.clock.Advance(20 * time.Minute)
	used := h.clock.Now()

	res := h.call(fiber.MethodGet, "/user", nil, token)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	until, err := time.Parse(time.RFC3339Nano, res.str("access_token", "valid_until"))
	require.NoError(t, err)
	assert.True(t, until.Equal(used.Add(30*time.Minute)), "valid_until %s", until)

	// past the original window, inside the renewed one
	h.clock.Advance(29 * time.Minute)
	assert.Equal(t, fiber.StatusOK, h.call(fiber.MethodGet, "/user", nil, token).status)
}

func TestTokenScopesMustCoverTheRequirement(t *testing.T) {
	h := newHarness(t, nil, func(cfg *config.Config) {
		cfg.Settings.AccessTokenScopes["a"] = "first"
		cfg.Settings.AccessTokenScopes["b"] = "second"
		cfg.Settings.AccessTokenScopes["c"] = "third"
	})
	h.seed("ann@example.com", false)
	session := h.login("ann@example.com", false)

	res := h.call(fiber.MethodPost, "/access-tokens", map[string]any{"scopes": []string{"b", "a"}, "description": "ci"}, session)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	token := res.str("token")

	assert.Equal(t, fiber.StatusOK, h.call(fiber.MethodGet, "/scoped/a", nil, token).status)

	res = h.call(fiber.MethodGet, "/scoped/a-c", nil, token)
	assert.Equal(t, fiber.StatusForbidden, res.status)
	assert.Equal(t, accesstoken.CodeInsufficientScope.Code, res.code())

	// the api token lacks admin, so it cannot manage tokens
	res = h.call(fiber.MethodGet, "/access-tokens", nil, token)
	assert.Equal(t, fiber.StatusForbidden, res.status)
}

func TestCurrentTokenCannotDeleteItself(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)
	first := h.login("ann@example.com", false)

	id := h.call(fiber.MethodGet, "/user", nil, first).str("access_token", "id")
	require.NotEmpty(t, id)

	res := h.call(fiber.MethodDelete, "/access-tokens/"+id, nil, first)
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, accesstoken.CodeCannotDeleteCurrent.Code, res.code())

	second := h.login("ann@example.com", false)
	res = h.call(fiber.MethodDelete, "/access-tokens/"+id, nil, second)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)

	res = h.call(fiber.MethodGet, "/user", nil, first)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

func TestLogoutInvalidatesTheToken(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)
	token := h.login("ann@example.com", false)

	require.Equal(t, fiber.StatusOK, h.call(fiber.MethodPost, "/logout", nil, token).status)
	assert.Equal(t, fiber.StatusUnauthorized, h.call(fiber.MethodGet, "/user", nil, token).status)
}

func githubStub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "gh-token"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "login": "ann"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"email": "ann@example.com", "primary": true, "verified": true}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLastLoginProviderCannotBeDeleted(t *testing.T) {
	gh := githubStub(t)
	h := newHarness(t, map[string]string{
		"OAUTH_GITHUB_CLIENT_ID":     "gh-client",
		"OAUTH_GITHUB_CLIENT_SECRET": "gh-secret",
		"OAUTH_GITHUB_TOKEN_URL":     gh.URL + "/login/oauth/access_token",
		"OAUTH_GITHUB_API_URL":       gh.URL,
	})
	h.seed("ann@example.com", false)
	token := h.login("ann@example.com", false)

	providers := func() []any {
		res := h.call(fiber.MethodGet, "/login", nil, token)
		require.Equal(t, fiber.StatusOK, res.status, res.raw)
		list, _ := res.body["login_providers"].([]any)
		return list
	}
	idOf := func(name string) string {
		for _, p := range providers() {
			m := p.(map[string]any)
			if m["provider"] == name {
				return m["id"].(string)
			}
		}
		return ""
	}

	passwordID := idOf("password")
	require.NotEmpty(t, passwordID)
	res := h.call(fiber.MethodDelete, "/login/"+passwordID, nil, token)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, provider.CodeLastProvider.Code, res.code())

	res = h.call(fiber.MethodPost, "/login/github", map[string]any{"code": "abc"}, token)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	require.Len(t, providers(), 2)

	res = h.call(fiber.MethodDelete, "/login/"+passwordID, nil, token)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.NotEmpty(t, idOf("github"))
	assert.Len(t, providers(), 1)

	// github still signs the account in
	res = h.call(fiber.MethodPost, "/login/github", map[string]any{"code": "abc"}, "")
	assert.Equal(t, fiber.StatusCreated, res.status, res.raw)
}

func TestSignupApprovalFlow(t *testing.T) {
	h := newHarness(t, map[string]string{
		"AUTH_SIGNUP_REQUIRES_APPROVAL": "true",
		"AUTH_SIGNUP_NOTIFY_EMAIL":      "admins@example.com",
	})
	h.seed("root@example.com", true)
	su := h.login("root@example.com", false)

	res := h.call(fiber.MethodPost, "/signup/password", map[string]any{
		"email": "new@example.com", "password": pw, "language": "en",
	}, "")
	require.Equal(t, fiber.StatusAccepted, res.status, res.raw)
	assert.Equal(t, "approval-pending", res.str("message"))
	assert.Equal(t, "new@example.com", mailString(h.lastMail(mailer.SignupRequested, "admins@example.com"), "Applicant"))

	res = h.call(fiber.MethodGet, "/signup-requests", nil, su)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	requests, _ := res.body["requests"].([]any)
	require.Len(t, requests, 1)
	id := requests[0].(map[string]any)["id"].(string)

	// regular users cannot see the queue
	h.seed("ann@example.com", false)
	res = h.call(fiber.MethodGet, "/signup-requests", nil, h.login("ann@example.com", false))
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = h.call(fiber.MethodPost, "/signup-requests/"+id, nil, su)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)

	res = h.call(fiber.MethodGet, "/signup-requests", nil, su)
	requests, _ = res.body["requests"].([]any)
	assert.Empty(t, requests)

	res = h.call(fiber.MethodPost, "/signup-requests/"+id, nil, su)
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, signup.CodeRequestNotFound.Code, res.code())

	// the applicant still confirms the address
	code := mailString(h.lastMail(mailer.SignupConfirmation, "new@example.com"), "Code")
	res = h.call(fiber.MethodGet, "/confirm-signup?code="+code, nil, "")
	assert.Equal(t, fiber.StatusCreated, res.status, res.raw)
}

func TestEmailChangeNotifiesTheOldAddress(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)
	h.seed("bob@example.com", false)
	token := h.login("ann@example.com", false)

	res := h.call(fiber.MethodPost, "/change-email", map[string]any{"email": "bob@example.com"}, token)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, user.CodeEmailTaken.Code, res.code())

	res = h.call(fiber.MethodPost, "/change-email", map[string]any{"email": "Ann.New@Example.com"}, token)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	code := mailString(h.lastMail(mailer.EmailChange, "ann.new@example.com"), "Code")
	require.NotEmpty(t, code)

	res = h.call(fiber.MethodPut, "/change-email", map[string]any{"code": "0000"}, token)
	assert.Equal(t, fiber.StatusNotFound, res.status)

	res = h.call(fiber.MethodPut, "/change-email", map[string]any{"code": code}, token)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)

	changed := h.lastMail(mailer.EmailChanged, "ann@example.com")
	assert.Equal(t, "ann.new@example.com", mailString(changed, "NewEmail"))
	assert.Equal(t, "ann.new@example.com", h.call(fiber.MethodGet, "/user", nil, token).str("user", "email"))

	res = h.call(fiber.MethodPut, "/change-email", map[string]any{"code": code}, token)
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, user.CodeNoEmailChange.Code, res.code())
}

func TestInvitationIsAcceptedOnce(t *testing.T) {
	h := newHarness(t, map[string]string{"AUTH_SIGNUP_REQUIRES_APPROVAL": "true"})
	h.seed("root@example.com", true)
	su := h.login("root@example.com", false)

	res := h.call(fiber.MethodPost, "/invitations", map[string]any{"email": "guest@example.com", "message": "welcome aboard"}, su)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	id := res.str("invitation", "id")
	token := res.str("invitation", "token")
	assert.Equal(t, token, mailString(h.lastMail(mailer.Invitation, "guest@example.com"), "Token"))

	// the invitation bypasses approval
	res = h.call(fiber.MethodPost, "/signup/password", map[string]any{
		"email": "guest@example.com", "password": pw, "language": "en", "invitation": token,
	}, "")
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "please-confirm", res.str("message"))

	res = h.call(fiber.MethodGet, "/invitations/"+id, nil, su)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	inv := res.body["invitation"].(map[string]any)
	assert.Equal(t, false, inv["valid"])
	assert.NotNil(t, inv["accepted_at"])

	res = h.call(fiber.MethodPost, "/signup/password", map[string]any{
		"email": "other@example.com", "password": pw, "language": "en", "invitation": token,
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, invitation.CodeInvalid.Code, res.code())

	code := mailString(h.lastMail(mailer.SignupConfirmation, "guest@example.com"), "Code")
	res = h.call(fiber.MethodGet, "/confirm-signup?code="+code, nil, "")
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	userID := res.str("user", "id")

	res = h.call(fiber.MethodGet, "/invitations/"+id, nil, su)
	assert.Equal(t, userID, res.str("invitation", "invited_user_id"))
}

func TestBlockLinkStopsFurtherMails(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)

	res := h.call(fiber.MethodPost, "/password/reset", map[string]any{"email": "ann@example.com"}, "")
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	link, err := url.Parse(h.lastMail(mailer.PasswordReset, "ann@example.com").BlockLink)
	require.NoError(t, err)
	code := link.Query().Get("code")
	require.NotEmpty(t, code)

	res = h.call(fiber.MethodGet, "/block-email?code="+url.QueryEscape(code), nil, "")
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "blocked", res.str("message"))

	res = h.call(fiber.MethodGet, "/block-email?code="+url.QueryEscape(code), nil, "")
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, cryptotoken.CodeAlreadyRedeemed.Code, res.code())

	res = h.call(fiber.MethodGet, "/block-email", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	// blocked addresses get the same answer but no mail
	h.mails.Reset()
	h.clock.Advance(2 * time.Hour)
	res = h.call(fiber.MethodPost, "/password/reset", map[string]any{"email": "ann@example.com"}, "")
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Empty(t, h.mails.Mails())
}

func TestSuperuserRoutesNeedSuperuser(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("ann@example.com", false)
	token := h.login("ann@example.com", false)

	res := h.call(fiber.MethodGet, "/users", nil, token)
	assert.Equal(t, fiber.StatusForbidden, res.status)
	assert.Equal(t, accesstoken.CodeSuperuserRequired.Code, res.code())

	res = h.call(fiber.MethodGet, "/users", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
	assert.Equal(t, accesstoken.CodeNoCredential.Code, res.code())
}

func TestSettingsAndOperationalRoutes(t *testing.T) {
	h := newHarness(t, nil)

	res := h.call(fiber.MethodGet, "/settings", nil, "")
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, []any{"password"}, res.body["providers"])

	assert.Equal(t, fiber.StatusOK, h.call(fiber.MethodGet, "/health", nil, "").status)

	h.call(fiber.MethodGet, "/user", nil, "")
	res = h.call(fiber.MethodGet, "/metrics", nil, "")
	assert.Contains(t, res.raw, `gatekeeper_auth_outcomes_total{outcome="ACCESS_TOKEN_NO_CREDENTIAL"} 1`)
}

func TestHealthHidesDatabaseError(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.db.Close())

	res := h.call(fiber.MethodGet, "/health", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, res.status)
	assert.Equal(t, map[string]any{"status": "degraded"}, res.body)
	assert.NotContains(t, res.raw, "closed")
}

func TestUnknownTenantIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	req := httptest.NewRequest(fiber.MethodGet, "/settings", nil)
	req.Header.Set("X-Tenant", "nope")
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
