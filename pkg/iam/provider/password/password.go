// Package password is the e-mail and password identity provider. It also
// owns the password reset and change workflows since the hash lives in its
// login provider row.
package password

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const Name = "password"

// keys of the login provider data
const (
	keyHash             = "password_hash"
	keyResetCode        = "reset_code_hash"
	keyResetRequestedAt = "reset_requested_at"
)

type payload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Provider implements provider.Provider
type Provider struct {
	users    user.Repository
	repo     provider.Repository
	throttle *emailrequest.Throttle
	mail     mailer.Scheduler
	audit    audit.Service
	clock    kernel.Clock
	cost     int
	resetTTL time.Duration

	// compared against when no account exists so both paths cost a bcrypt run
	dummy []byte
}

type Options struct {
	BcryptCost int
	ResetTTL   time.Duration
	Clock      kernel.Clock
}

func New(
	users user.Repository,
	repo provider.Repository,
	throttle *emailrequest.Throttle,
	mail mailer.Scheduler,
	auditSvc audit.Service,
	opts Options,
) (*Provider, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Clock == nil {
		opts.Clock = kernel.SystemClock
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), opts.BcryptCost)
	if err != nil {
		return nil, errx.Wrap(err, "prepare password provider", errx.TypeInternal)
	}
	return &Provider{
		users:    users,
		repo:     repo,
		throttle: throttle,
		mail:     mail,
		audit:    auditSvc,
		clock:    opts.Clock,
		cost:     opts.BcryptCost,
		resetTTL: opts.ResetTTL,
		dummy:    dummy,
	}, nil
}

func (p *Provider) Name() string { return Name }

// Validate decodes {email, password}. Associating only needs the password,
// the account is the caller's.
func (p *Provider) Validate(_ context.Context, raw json.RawMessage, mode provider.Mode) (*provider.Validated, error) {
	var in payload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
		}
	}

	var err error
	switch mode {
	case provider.ModeLogin:
		err = validation.ValidateStruct(&in,
			validation.Field(&in.Email, validation.Required),
			validation.Field(&in.Password, validation.Required),
		)
	case provider.ModeSignup:
		err = validation.ValidateStruct(&in,
			validation.Field(&in.Email, formx.Email...),
			validation.Field(&in.Password, formx.Password...),
		)
	default:
		err = validation.ValidateStruct(&in,
			validation.Field(&in.Password, formx.Password...),
		)
	}
	if err := formx.FromValidation(err); err != nil {
		return nil, err
	}

	v := &provider.Validated{Email: kernel.NormalizeEmail(in.Email)}
	if mode == provider.ModeLogin {
		v.Secret = in.Password
		return v, nil
	}

	hash, err := p.hash(in.Password)
	if err != nil {
		return nil, err
	}
	v.Data = map[string]any{keyHash: hash}
	return v, nil
}

func (p *Provider) Login(ctx context.Context, tenant kernel.TenantID, v *provider.Validated) (*user.User, error) {
	u, err := p.users.FindByEmail(ctx, tenant, v.Email)
	if err != nil {
		if errx.HasCode(err, user.CodeNotFound) {
			p.burn(v.Secret)
			return nil, provider.ErrLoginFailed()
		}
		return nil, err
	}

	lp, err := p.repo.FindForUser(ctx, u.ID, Name)
	if err != nil {
		if errx.HasCode(err, provider.CodeNotFound) {
			p.burn(v.Secret)
			return nil, provider.ErrLoginFailed()
		}
		return nil, err
	}

	if !matches(lp.Data.String(keyHash), v.Secret) {
		return nil, provider.ErrLoginFailed()
	}
	return u, nil
}

func (p *Provider) Finalize(ctx context.Context, u *user.User, v *provider.Validated) error {
	hash, _ := v.Data[keyHash].(string)
	if hash == "" {
		return errx.Internal("password hash missing from validated signup")
	}
	lp := provider.NewLoginProvider(u, Name, uuid.NewString(), kernel.Attributes{keyHash: hash}, p.clock.Now())
	return p.repo.Create(ctx, lp)
}

// Associate adds a password to an account that has none yet
func (p *Provider) Associate(ctx context.Context, u *user.User, v *provider.Validated) error {
	_, err := p.repo.FindForUser(ctx, u.ID, Name)
	switch {
	case err == nil:
		return provider.ErrAlreadyLinked().WithDetail("provider", Name)
	case !errx.HasCode(err, provider.CodeNotFound):
		return err
	}
	return p.Finalize(ctx, u, v)
}

// RequestReset mails a reset link when email belongs to an account with a
// password. Unknown addresses and throttled requests are not reported to
// the caller.
func (p *Provider) RequestReset(ctx context.Context, tenant kernel.TenantID, email string) error {
	log := logx.WithContext(ctx).WithField("purpose", emailrequest.PurposePasswordReset)

	u, lp, err := p.account(ctx, tenant, email)
	if err != nil {
		return err
	}
	if lp == nil || !u.CanLogin() {
		log.Debug("password reset for unknown account ignored")
		return nil
	}

	decision, err := p.throttle.Request(ctx, emailrequest.PurposePasswordReset, u.Email)
	if err != nil {
		return err
	}
	if decision != emailrequest.Allowed {
		return nil
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	now := p.clock.Now()
	lp.Data = lp.Data.Merge(map[string]any{
		keyResetCode:        otp.Hash(code),
		keyResetRequestedAt: now.Format(time.RFC3339),
	})
	lp.UpdatedAt = now
	if err := p.repo.UpdateData(ctx, lp); err != nil {
		return err
	}

	link := p.mail.Link("/password/reset", url.Values{"id": {u.ID.String()}, "code": {code}})
	return p.mail.ScheduleThrottled(ctx, emailrequest.PurposePasswordReset, mailer.Mail{
		Template: mailer.PasswordReset,
		To:       u.Email,
		Language: u.Language,
		Data:     map[string]any{"Link": link, "Code": code},
	})
}

// ResetPassword sets a new password with a mailed reset code. Unknown
// accounts, wrong and stale codes all answer not found.
func (p *Provider) ResetPassword(ctx context.Context, tenant kernel.TenantID, id kernel.UserID, code, newPassword string) error {
	if err := validation.Validate(newPassword, formx.Password...); err != nil {
		return errx.Invalid(errx.FieldErrors{"password": {err.Error()}})
	}

	u, err := p.users.FindByID(ctx, tenant, id)
	if err != nil {
		if errx.HasCode(err, user.CodeNotFound) {
			return otp.ErrCodeMismatch()
		}
		return err
	}
	lp, err := p.repo.FindForUser(ctx, u.ID, Name)
	if err != nil {
		if errx.HasCode(err, provider.CodeNotFound) {
			return otp.ErrCodeMismatch()
		}
		return err
	}

	if !otp.MatchesHash(lp.Data.String(keyResetCode), code) {
		return otp.ErrCodeMismatch()
	}
	requested, err := time.Parse(time.RFC3339, lp.Data.String(keyResetRequestedAt))
	if err != nil || (p.resetTTL > 0 && !requested.Add(p.resetTTL).After(p.clock.Now())) {
		return otp.ErrCodeExpired()
	}

	if err := p.setPassword(ctx, lp, newPassword); err != nil {
		return err
	}
	if err := p.throttle.Reset(ctx, emailrequest.PurposePasswordReset, u.Email); err != nil {
		return err
	}
	p.audit.LogPasswordChanged(ctx, u.ID, u.TenantID, true)
	return p.notifyChanged(ctx, u)
}

// ChangePassword replaces the password of u after checking the current one
func (p *Provider) ChangePassword(ctx context.Context, u *user.User, current, newPassword string) error {
	lp, err := p.repo.FindForUser(ctx, u.ID, Name)
	if err != nil {
		return err
	}
	if !matches(lp.Data.String(keyHash), current) {
		return errx.Invalid(errx.FieldErrors{"current_password": {"wrong password"}})
	}
	if err := validation.Validate(newPassword, formx.Password...); err != nil {
		return errx.Invalid(errx.FieldErrors{"password": {err.Error()}})
	}

	if err := p.setPassword(ctx, lp, newPassword); err != nil {
		return err
	}
	p.audit.LogPasswordChanged(ctx, u.ID, u.TenantID, false)
	return p.notifyChanged(ctx, u)
}

func (p *Provider) setPassword(ctx context.Context, lp *provider.LoginProvider, password string) error {
	hash, err := p.hash(password)
	if err != nil {
		return err
	}
	data := lp.Data.Merge(map[string]any{keyHash: hash})
	delete(data, keyResetCode)
	delete(data, keyResetRequestedAt)
	lp.Data = data
	lp.UpdatedAt = p.clock.Now()
	return p.repo.UpdateData(ctx, lp)
}

func (p *Provider) notifyChanged(ctx context.Context, u *user.User) error {
	return p.mail.Schedule(ctx, mailer.Mail{Template: mailer.PasswordChanged, To: u.Email, Language: u.Language})
}

// account returns the user of email and its password provider. Both are
// nil when either is missing.
func (p *Provider) account(ctx context.Context, tenant kernel.TenantID, email string) (*user.User, *provider.LoginProvider, error) {
	u, err := p.users.FindByEmail(ctx, tenant, email)
	if err != nil {
		if errx.HasCode(err, user.CodeNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	lp, err := p.repo.FindForUser(ctx, u.ID, Name)
	if err != nil {
		if errx.HasCode(err, provider.CodeNotFound) {
			return u, nil, nil
		}
		return nil, nil, err
	}
	return u, lp, nil
}

func (p *Provider) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errx.Invalid(errx.FieldErrors{"password": {fmt.Sprintf("must be at most %d bytes long", formx.MaxPasswordBytes)}})
	}
	if err != nil {
		return "", errx.Wrap(err, "hash password", errx.TypeInternal)
	}
	return string(b), nil
}

func (p *Provider) burn(password string) {
	_ = bcrypt.CompareHashAndPassword(p.dummy, []byte(password))
}

func matches(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
