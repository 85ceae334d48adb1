package invitationsrv

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// CreateForm is the body of a superuser inviting someone
type CreateForm struct {
	Email       string     `json:"email"`
	ValidUntil  *time.Time `json:"valid_until"`
	TiedToEmail bool       `json:"tied_to_email"`
	Message     string     `json:"message"`
}

func (f CreateForm) validateAt(now time.Time) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, formx.Email...),
		validation.Field(&f.ValidUntil, validation.By(func(v any) error {
			t, _ := v.(*time.Time)
			if t != nil && !t.After(now) {
				return errors.New("must be in the future")
			}
			return nil
		})),
		validation.Field(&f.Message, validation.Length(0, 4000)),
	)
}

type InvitationService struct {
	repo     invitation.Repository
	throttle *emailrequest.Throttle
	mail     mailer.Scheduler
	clock    kernel.Clock
}

func NewInvitationService(repo invitation.Repository, throttle *emailrequest.Throttle, mail mailer.Scheduler, clock kernel.Clock) *InvitationService {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &InvitationService{repo: repo, throttle: throttle, mail: mail, clock: clock}
}

// Create stores an invitation and mails its token once the unit of work
// commits
func (s *InvitationService) Create(ctx context.Context, inviter *user.User, form CreateForm) (*invitation.Invitation, error) {
	now := s.clock.Now()
	if err := formx.FromValidation(form.validateAt(now)); err != nil {
		return nil, err
	}

	token, err := otp.GenerateHex(invitation.TokenBytes)
	if err != nil {
		return nil, err
	}
	inv := &invitation.Invitation{
		ID:             uuid.NewString(),
		TenantID:       inviter.TenantID,
		Email:          kernel.NormalizeEmail(form.Email),
		Token:          token,
		Valid:          true,
		TiedToEmail:    form.TiedToEmail,
		Message:        form.Message,
		InvitingUserID: &inviter.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if form.ValidUntil != nil {
		until := form.ValidUntil.UTC()
		inv.ValidUntil = &until
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.throttle.Allow(ctx, emailrequest.PurposeInvitation, inv.Email); err != nil {
		return nil, err
	}

	err = s.mail.ScheduleThrottled(ctx, emailrequest.PurposeInvitation, mailer.Mail{
		Template: mailer.Invitation,
		To:       inv.Email,
		Language: inviter.Language,
		Data: map[string]any{
			"Token":   token,
			"Email":   inviter.Email,
			"Message": inv.Message,
			"Link":    s.mail.Link("/signup", url.Values{"invitation": {token}}),
		},
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvitationService) List(ctx context.Context, tenant kernel.TenantID) ([]*invitation.Invitation, error) {
	return s.repo.List(ctx, tenant)
}

func (s *InvitationService) Get(ctx context.Context, tenant kernel.TenantID, id string) (*invitation.Invitation, error) {
	return s.repo.FindByID(ctx, tenant, id)
}

func (s *InvitationService) Delete(ctx context.Context, tenant kernel.TenantID, id string) error {
	return s.repo.Delete(ctx, tenant, id)
}

// Accept consumes the invitation behind token. Of two concurrent signups
// with the same token only one gets it, the other sees ErrInvalid.
func (s *InvitationService) Accept(ctx context.Context, tenant kernel.TenantID, token string) (*invitation.Invitation, error) {
	inv, err := s.repo.FindByToken(ctx, tenant, token)
	if err != nil {
		if errx.HasCode(err, invitation.CodeNotFound) {
			return nil, invitation.ErrInvalid()
		}
		return nil, err
	}

	now := s.clock.Now()
	if !inv.UsableAt(now) {
		return nil, invitation.ErrInvalid()
	}
	ok, err := s.repo.MarkAccepted(ctx, inv.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invitation.ErrInvalid()
	}

	inv.Valid = false
	inv.AcceptedAt = &now
	logx.WithContext(ctx).WithField("invitation_id", inv.ID).Info("invitation accepted")
	return inv, nil
}

// Link records the account created with the invitation behind token
func (s *InvitationService) Link(ctx context.Context, tenant kernel.TenantID, token string, userID kernel.UserID) error {
	inv, err := s.repo.FindByToken(ctx, tenant, token)
	if err != nil {
		if errx.HasCode(err, invitation.CodeNotFound) {
			return nil
		}
		return err
	}
	return s.repo.SetInvitedUser(ctx, inv.ID, userID, s.clock.Now())
}
