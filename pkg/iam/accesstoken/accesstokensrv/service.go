package accesstokensrv

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/ptrx"
	"github.com/google/uuid"
)

// LoginRequest describes the session a successful login opens
type LoginRequest struct {
	Provider  string
	Trusted   bool
	Extra     map[string]any
	IP        string
	UserAgent string
}

// Requirement is what a route demands from the presented token
type Requirement struct {
	Scopes    []string
	Superuser bool
}

type AccessTokenService struct {
	repo    accesstoken.Repository
	users   user.Repository
	catalog *scopes.Catalog
	cfg     config.AuthConfig
	clock   kernel.Clock
	audit   audit.Service
}

func NewAccessTokenService(
	repo accesstoken.Repository,
	users user.Repository,
	catalog *scopes.Catalog,
	cfg config.AuthConfig,
	clock kernel.Clock,
	auditSvc audit.Service,
) *AccessTokenService {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &AccessTokenService{
		repo:    repo,
		users:   users,
		catalog: catalog,
		cfg:     cfg,
		clock:   clock,
		audit:   auditSvc,
	}
}

// Issue mints the session token of a login. Untrusted sessions live for the
// short window, trusted ones for the long one or forever when it is zero.
// Both renew on use.
func (s *AccessTokenService) Issue(ctx context.Context, u *user.User, req LoginRequest) (*accesstoken.Issued, error) {
	now := s.clock.Now()

	ua := req.UserAgent
	if ua == "" {
		ua = "(unknown user agent)"
	}

	t := s.newToken(u, now)
	t.Scopes = s.catalog.Defaults()
	t.RenewsWhenUsed = true
	t.Description = fmt.Sprintf("Login from IP %s with user agent %s", req.IP, ua)
	t.Data["provider"] = req.Provider
	if len(req.Extra) > 0 {
		t.Data["login"] = req.Extra
	}

	switch {
	case !req.Trusted:
		t.ValidUntil = ptrx.Time(now.Add(s.cfg.ShortValidity))
		t.DefaultExpirationMinutes = ptrx.Int(int(s.cfg.ShortValidity / time.Minute))
	case s.cfg.LongValidityDays > 0:
		t.ValidUntil = ptrx.Time(now.AddDate(0, 0, s.cfg.LongValidityDays))
		t.DefaultExpirationMinutes = ptrx.Int(s.cfg.LongValidityMinutes())
	}

	return s.create(ctx, t, "login")
}

// Authenticate resolves an opaque value into its owner and token. On success
// the use is recorded on the token, which slides its expiry when it renews.
func (s *AccessTokenService) Authenticate(ctx context.Context, opaque string, req Requirement, from string) (*user.User, *accesstoken.AccessToken, error) {
	now := s.clock.Now()

	t, err := s.repo.FindValidByHash(ctx, kernel.HashToken(opaque))
	if err != nil {
		return nil, nil, err
	}

	u, err := s.users.Get(ctx, t.UserID)
	if err != nil {
		if errx.HasCode(err, user.CodeNotFound) {
			return nil, nil, accesstoken.ErrCredentialNotFound()
		}
		return nil, nil, err
	}
	if tenant, ok := kernel.TenantFrom(ctx); ok && tenant != u.TenantID {
		return nil, nil, accesstoken.ErrCredentialNotFound()
	}

	switch {
	case !u.CanLogin():
		return nil, nil, accesstoken.ErrCredentialInvalidated()
	case req.Superuser && !u.Superuser:
		return nil, nil, accesstoken.ErrSuperuserRequired()
	case !t.HasScopes(req.Scopes...):
		return nil, nil, accesstoken.ErrInsufficientScope().WithDetail("required", req.Scopes)
	case t.ExpiredAt(now):
		return nil, nil, accesstoken.ErrCredentialExpired()
	}

	t.Touch(now, from)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, nil, err
	}
	return u, t, nil
}

// Revoke invalidates t. by is the user asking for it.
func (s *AccessTokenService) Revoke(ctx context.Context, t *accesstoken.AccessToken, by kernel.UserID) error {
	t.Revoke(s.clock.Now())
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}
	s.audit.LogTokenRevoked(ctx, t.UserID, t.ID, by)
	return nil
}

// ListUsable returns the tokens of userID that still authenticate
func (s *AccessTokenService) ListUsable(ctx context.Context, userID kernel.UserID) ([]*accesstoken.AccessToken, error) {
	tokens, err := s.repo.ListValidByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]*accesstoken.AccessToken, 0, len(tokens))
	for _, t := range tokens {
		if t.UsableAt(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateAPIToken mints a token the owner asked for explicitly. It keeps its
// expiry, if any, and never renews.
func (s *AccessTokenService) CreateAPIToken(ctx context.Context, owner *user.User, form accesstoken.APITokenForm) (*accesstoken.Issued, error) {
	now := s.clock.Now()
	if err := s.checkForm(form, owner.Superuser, now); err != nil {
		return nil, err
	}

	n, err := s.repo.CountValidByUser(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if n >= s.cfg.MaxAccessTokens {
		return nil, accesstoken.ErrTooMany().WithDetail("max", s.cfg.MaxAccessTokens)
	}

	t := s.newToken(owner, now)
	t.Scopes = dedupe(form.Scopes)
	t.IsAPIToken = true
	t.Description = form.Description
	if form.ValidUntil != nil {
		t.ValidUntil = ptrx.Time(form.ValidUntil.UTC())
	}
	return s.create(ctx, t, "api")
}

// IssueMaintenance mints a short lived token for target on behalf of a
// superuser. The requested expiry is ignored.
func (s *AccessTokenService) IssueMaintenance(ctx context.Context, target *user.User, form accesstoken.APITokenForm) (*accesstoken.Issued, error) {
	now := s.clock.Now()
	form.ValidUntil = nil
	if err := s.checkForm(form, true, now); err != nil {
		return nil, err
	}

	t := s.newToken(target, now)
	t.Scopes = dedupe(form.Scopes)
	t.IsAPIToken = true
	t.RenewsWhenUsed = true
	t.Description = form.Description
	t.ValidUntil = ptrx.Time(now.Add(s.cfg.SuperuserTokenValidity))
	t.DefaultExpirationMinutes = ptrx.Int(int(s.cfg.SuperuserTokenValidity / time.Minute))
	return s.create(ctx, t, "maintenance")
}

// Delete revokes the token id for caller. Superusers may delete any token of
// their tenant, everybody else only their own, and nobody the token that
// authorizes the call.
func (s *AccessTokenService) Delete(ctx context.Context, caller *user.User, current *accesstoken.AccessToken, id kernel.AccessTokenID) error {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.Valid {
		return accesstoken.ErrTokenNotFound()
	}
	if t.UserID != caller.ID {
		if !caller.Superuser {
			return accesstoken.ErrTokenNotFound()
		}
		if _, err := s.users.FindByID(ctx, caller.TenantID, t.UserID); err != nil {
			return accesstoken.ErrTokenNotFound()
		}
	}
	if current != nil && t.ID == current.ID {
		return accesstoken.ErrCannotDeleteCurrent()
	}
	return s.Revoke(ctx, t, caller.ID)
}

func (s *AccessTokenService) checkForm(form accesstoken.APITokenForm, superuser bool, now time.Time) error {
	if err := formx.FromValidation(form.ValidateAt(now)); err != nil {
		return err
	}
	return s.catalog.Validate(form.Scopes, superuser)
}

func (s *AccessTokenService) newToken(u *user.User, now time.Time) *accesstoken.AccessToken {
	return &accesstoken.AccessToken{
		ID:        kernel.AccessTokenID(uuid.NewString()),
		UserID:    u.ID,
		Valid:     true,
		Data:      kernel.Attributes{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *AccessTokenService) create(ctx context.Context, t *accesstoken.AccessToken, kind string) (*accesstoken.Issued, error) {
	value, err := accesstoken.GenerateValue()
	if err != nil {
		return nil, err
	}
	t.TokenHash = kernel.HashToken(value)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.audit.LogTokenIssued(ctx, t.UserID, t.ID, kind)
	return &accesstoken.Issued{AccessToken: t, Token: value}, nil
}

func dedupe(in []string) accesstoken.Scopes {
	seen := make(map[string]bool, len(in))
	out := make(accesstoken.Scopes, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
