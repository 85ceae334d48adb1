package usersrv

import (
	"context"
	"net/url"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/ptrx"
	validation "github.com/go-ozzo/ozzo-validation"
)

// UserService covers self service profile changes and the superuser
// administration of accounts
type UserService struct {
	repo      user.Repository
	throttle  *emailrequest.Throttle
	mail      mailer.Scheduler
	audit     audit.Service
	clock     kernel.Clock
	languages []string
}

func NewUserService(
	repo user.Repository,
	throttle *emailrequest.Throttle,
	mail mailer.Scheduler,
	auditSvc audit.Service,
	clock kernel.Clock,
	languages []string,
) *UserService {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &UserService{
		repo:      repo,
		throttle:  throttle,
		mail:      mail,
		audit:     auditSvc,
		clock:     clock,
		languages: languages,
	}
}

// ============================================================================
// Profile
// ============================================================================

func (s *UserService) UpdateProfile(ctx context.Context, u *user.User, patch ProfilePatch) (*user.User, error) {
	patch.languages = s.languages
	if err := formx.Check(patch); err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Language != nil {
		u.Language = *patch.Language
	}
	if len(patch.Data) > 0 {
		u.Data = u.Data.Merge(patch.Data)
	}
	u.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RequestEmailChange mails a confirmation code to the new address. The
// change only happens once the code comes back.
func (s *UserService) RequestEmailChange(ctx context.Context, u *user.User, email string) error {
	if err := validation.Validate(email, formx.Email...); err != nil {
		return errx.Invalid(errx.FieldErrors{"email": {err.Error()}})
	}
	email = kernel.NormalizeEmail(email)

	taken, err := s.repo.EmailTaken(ctx, u.TenantID, email)
	if err != nil {
		return err
	}
	if taken {
		return user.ErrEmailTaken()
	}

	if err := s.throttle.Allow(ctx, emailrequest.PurposeEmailChange, email); err != nil {
		return err
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	u.NewEmail = ptrx.String(email)
	u.EmailChangeCode = ptrx.String(otp.Hash(code))
	u.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	return s.mail.ScheduleThrottled(ctx, emailrequest.PurposeEmailChange, mailer.Mail{
		Template: mailer.EmailChange,
		To:       email,
		Language: u.Language,
		Data: map[string]any{
			"Code":     code,
			"NewEmail": email,
			"Link":     s.mail.Link("/change-email", url.Values{"code": {code}}),
		},
	})
}

// ConfirmEmailChange swaps in the pending address when code matches. A
// wrong code and a missing request look the same. The old address is told
// about the change.
func (s *UserService) ConfirmEmailChange(ctx context.Context, u *user.User, code string) error {
	if u.NewEmail == nil || u.EmailChangeCode == nil || !otp.MatchesHash(*u.EmailChangeCode, code) {
		return user.ErrNoEmailChange()
	}
	newEmail := *u.NewEmail

	if err := s.throttle.Reset(ctx, emailrequest.PurposeEmailChange, newEmail); err != nil {
		return err
	}
	taken, err := s.repo.EmailTaken(ctx, u.TenantID, newEmail)
	if err != nil {
		return err
	}
	if taken {
		return user.ErrEmailTaken()
	}

	old := u.Email
	u.Email = newEmail
	u.NewEmail = nil
	u.EmailChangeCode = nil
	u.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.audit.LogEmailChanged(ctx, u.ID, u.TenantID)

	return s.mail.Schedule(ctx, mailer.Mail{
		Template: mailer.EmailChanged,
		To:       old,
		Language: u.Language,
		Data:     map[string]any{"NewEmail": newEmail},
	})
}

// ============================================================================
// Administration
// ============================================================================

// UserPage is one page of the admin listing
type UserPage struct {
	Users   []*user.User `json:"users"`
	HasMore bool         `json:"has_more"`
	Params  ListQuery    `json:"params"`
}

// List pages through the accounts of tenant, by e-mail unless asked
// otherwise
func (s *UserService) List(ctx context.Context, tenant kernel.TenantID, q ListQuery) (*UserPage, error) {
	if err := formx.Check(q); err != nil {
		return nil, err
	}
	if q.OrderBy == "" {
		q.OrderBy = "email"
	}
	opts := kernel.ListOptions{
		Offset:    q.Offset,
		Limit:     q.Limit,
		OrderBy:   q.OrderBy,
		Direction: kernel.Direction(q.Direction),
	}.Normalize(user.ListOrder...)

	page, err := s.repo.List(ctx, tenant, opts)
	if err != nil {
		return nil, err
	}
	return &UserPage{
		Users:   page.Items,
		HasMore: page.HasNext(),
		Params: ListQuery{
			Offset:    opts.Offset,
			Limit:     opts.Limit,
			OrderBy:   opts.OrderBy,
			Direction: string(opts.Direction),
		},
	}, nil
}

func (s *UserService) Get(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) (*user.User, error) {
	return s.repo.FindByID(ctx, tenant, id)
}

// FindByID lets the service stand in wherever a user lookup is needed
func (s *UserService) FindByID(ctx context.Context, tenant kernel.TenantID, id kernel.UserID) (*user.User, error) {
	return s.repo.FindByID(ctx, tenant, id)
}

func (s *UserService) GetByEmail(ctx context.Context, tenant kernel.TenantID, email string) (*user.User, error) {
	return s.repo.FindByEmail(ctx, tenant, kernel.NormalizeEmail(email))
}

// Create adds an account without login provider. The user gets in through
// a password reset or an external provider sharing the address.
func (s *UserService) Create(ctx context.Context, tenant kernel.TenantID, form CreateForm) (*user.User, error) {
	form.languages = s.languages
	if err := formx.Check(form); err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailTaken(ctx, tenant, form.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, user.ErrAlreadyExists()
	}

	u := user.New(tenant, form.Email, form.Language, s.clock.Now())
	u.DisplayName = form.DisplayName
	u.Superuser = form.Superuser
	u.Disabled = form.Disabled
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.LogAccountCreated(ctx, u.ID, u.TenantID, "admin")
	return u, nil
}

// Update applies patch to the account id. Superusers can neither disable
// themselves nor give up their own superuser flag.
func (s *UserService) Update(ctx context.Context, caller *user.User, id kernel.UserID, patch AdminPatch) (*user.User, error) {
	if err := formx.Check(patch); err != nil {
		return nil, err
	}
	u, err := s.repo.FindByID(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}

	if u.ID == caller.ID {
		if patch.Disabled != nil && *patch.Disabled {
			return nil, user.ErrSelfModify("disabled", "cannot-disable-own-account")
		}
		if patch.Superuser != nil && !*patch.Superuser {
			return nil, user.ErrSelfModify("superuser", "cannot-remove-own-superuser-status")
		}
	}

	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Email != nil {
		u.Email = kernel.NormalizeEmail(*patch.Email)
	}
	if patch.Superuser != nil {
		u.Superuser = *patch.Superuser
	}
	if patch.Disabled != nil {
		u.Disabled = *patch.Disabled
	}
	if len(patch.Data) > 0 {
		u.Data = u.Data.Merge(patch.Data)
	}
	u.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	logx.WithContext(ctx).WithFields(logx.Fields{
		"target_user_id": u.ID.String(),
		"disabled":       u.Disabled,
		"superuser":      u.Superuser,
	}).Info("user updated by superuser")
	return u, nil
}

// Delete removes the account id together with its tokens and providers
func (s *UserService) Delete(ctx context.Context, caller *user.User, id kernel.UserID) error {
	if id == caller.ID {
		return user.ErrCannotDeleteOwnAccount()
	}
	if err := s.repo.Delete(ctx, caller.TenantID, id); err != nil {
		return err
	}
	logx.WithContext(ctx).WithField("target_user_id", id.String()).Info("user deleted by superuser")
	return nil
}
