package signupsrv

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokensrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/envelope"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/google/uuid"
)

// pending requests are opened whatever their age
const noExpiry = time.Duration(math.MaxInt64)

// Outcome tells the caller which branch a signup took
type Outcome int

const (
	// Pending means a superuser has to approve the request first
	Pending Outcome = iota + 1
	// Created means the account exists now
	Created
	// ConfirmationSent means the address has to be confirmed first
	ConfirmationSent
)

type Result struct {
	Outcome Outcome
	User    *user.User
	Token   *accesstoken.Issued
}

// Client describes the caller for the session a signup may open
type Client struct {
	IP        string
	UserAgent string
}

// FinalizeOptions tune Finalize
type FinalizeOptions struct {
	// NoToken skips the session, used when a superuser approves a request
	NoToken bool
	Client  Client
}

type SignupService struct {
	registry    *provider.Registry
	users       user.Repository
	requests    signup.Repository
	invitations *invitationsrv.InvitationService
	tokens      *accesstokensrv.AccessTokenService
	throttle    *emailrequest.Throttle
	mail        mailer.Scheduler
	sealer      *envelope.Sealer
	gate        *cryptotoken.Gate
	audit       audit.Service
	cfg         config.AuthConfig
	languages   []string
	clock       kernel.Clock
}

// Deps groups the collaborators of SignupService
type Deps struct {
	Registry    *provider.Registry
	Users       user.Repository
	Requests    signup.Repository
	Invitations *invitationsrv.InvitationService
	Tokens      *accesstokensrv.AccessTokenService
	Throttle    *emailrequest.Throttle
	Mail        mailer.Scheduler
	Sealer      *envelope.Sealer
	Gate        *cryptotoken.Gate
	Audit       audit.Service
	Clock       kernel.Clock
}

func NewSignupService(d Deps, cfg config.AuthConfig, languages []string) *SignupService {
	if d.Clock == nil {
		d.Clock = kernel.SystemClock
	}
	return &SignupService{
		registry:    d.Registry,
		users:       d.Users,
		requests:    d.Requests,
		invitations: d.Invitations,
		tokens:      d.Tokens,
		throttle:    d.Throttle,
		mail:        d.Mail,
		sealer:      d.Sealer,
		gate:        d.Gate,
		audit:       d.Audit,
		cfg:         cfg,
		languages:   languages,
		clock:       d.Clock,
	}
}

// Submit runs a signup with the named provider. Depending on approval,
// invitation and whether the provider vouches for the address it stores a
// pending request, creates the account or mails a confirmation link.
func (s *SignupService) Submit(ctx context.Context, tenant kernel.TenantID, name string, raw json.RawMessage, client Client) (*Result, error) {
	var form signup.Form
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &form); err != nil {
			return nil, errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
		}
	}
	if err := formx.FromValidation(form.ValidateFor(s.languages)); err != nil {
		return nil, err
	}

	p, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	v, err := p.Validate(ctx, raw, provider.ModeSignup)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, tenant, v.Email); err != nil {
		return nil, err
	}

	approve := s.cfg.SignupRequiresApproval
	if form.Invitation != "" {
		if _, err := s.invitations.Accept(ctx, tenant, form.Invitation); err != nil {
			return nil, err
		}
		approve = false
	}

	snap := &signup.Snapshot{Tenant: tenant, Provider: name, Validated: *v, Form: form}
	switch {
	case approve:
		if err := s.createRequest(ctx, snap); err != nil {
			return nil, err
		}
		return &Result{Outcome: Pending}, nil
	case v.EmailVerified:
		return s.Finalize(ctx, snap, FinalizeOptions{Client: client})
	default:
		if err := s.sendConfirmation(ctx, snap); err != nil {
			return nil, err
		}
		return &Result{Outcome: ConfirmationSent}, nil
	}
}

// Confirm finishes the signup sealed in code. Each code works once.
func (s *SignupService) Confirm(ctx context.Context, tenant kernel.TenantID, code string, client Client) (*Result, error) {
	if code == "" {
		return nil, errx.Invalid(errx.FieldErrors{"code": {"cannot be blank"}})
	}
	var snap signup.Snapshot
	if err := s.gate.RedeemEnvelope(ctx, s.sealer, code, s.cfg.ConfirmTTL, &snap); err != nil {
		return nil, err
	}
	if snap.Tenant != tenant {
		return nil, envelope.ErrInvalidEnvelope()
	}
	return s.Finalize(ctx, &snap, FinalizeOptions{Client: client})
}

// Finalize creates the account of snap and attaches its provider. Both
// happen in one savepoint: a provider refusing the identity leaves no
// account behind.
func (s *SignupService) Finalize(ctx context.Context, snap *signup.Snapshot, opts FinalizeOptions) (*Result, error) {
	p, err := s.registry.Get(snap.Provider)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, snap.Tenant, snap.Validated.Email); err != nil {
		return nil, err
	}

	u := user.New(snap.Tenant, snap.Validated.Email, snap.Form.Language, s.clock.Now())
	if len(snap.Form.ExtraData) > 0 {
		u.Data["signup"] = snap.Form.ExtraData
	}

	err = store.Nested(ctx, "signup_finalize", func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return p.Finalize(ctx, u, &snap.Validated)
	})
	if err != nil {
		return nil, err
	}

	if snap.Form.Invitation != "" {
		if err := s.invitations.Link(ctx, snap.Tenant, snap.Form.Invitation, u.ID); err != nil {
			return nil, err
		}
	}
	s.audit.LogAccountCreated(ctx, u.ID, u.TenantID, snap.Provider)

	if err := s.mail.Schedule(ctx, mailer.Mail{Template: mailer.Welcome, To: u.Email, Language: u.Language}); err != nil {
		return nil, err
	}

	res := &Result{Outcome: Created, User: u}
	if opts.NoToken {
		return res, nil
	}
	res.Token, err = s.tokens.Issue(ctx, u, accesstokensrv.LoginRequest{
		Provider:  snap.Provider,
		Trusted:   snap.Form.Trusted,
		Extra:     snap.Form.ExtraData,
		IP:        opts.Client.IP,
		UserAgent: opts.Client.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ============================================================================
// Pending requests
// ============================================================================

func (s *SignupService) ListRequests(ctx context.Context, tenant kernel.TenantID) ([]*signup.Pending, error) {
	requests, err := s.requests.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]*signup.Pending, 0, len(requests))
	for _, r := range requests {
		snap, err := s.open(r)
		if err != nil {
			logx.WithContext(ctx).WithError(err).WithField("signup_request_id", r.ID).Warn("unreadable signup request skipped")
			continue
		}
		out = append(out, &signup.Pending{
			ID:            r.ID,
			Email:         snap.Validated.Email,
			EmailVerified: snap.Validated.EmailVerified,
			Provider:      snap.Provider,
			Language:      snap.Form.Language,
			ExtraData:     snap.Form.ExtraData,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

// Approve resumes a pending signup. Verified addresses get their account
// right away, the others a confirmation link.
func (s *SignupService) Approve(ctx context.Context, tenant kernel.TenantID, id string) error {
	r, err := s.requests.FindByID(ctx, tenant, id)
	if err != nil {
		return err
	}
	snap, err := s.open(r)
	if err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, tenant, id); err != nil {
		return err
	}

	if snap.Validated.EmailVerified {
		_, err := s.Finalize(ctx, snap, FinalizeOptions{NoToken: true})
		return err
	}
	return s.sendConfirmation(ctx, snap)
}

// Reject drops a pending signup without telling the applicant
func (s *SignupService) Reject(ctx context.Context, tenant kernel.TenantID, id string) error {
	return s.requests.Delete(ctx, tenant, id)
}

func (s *SignupService) createRequest(ctx context.Context, snap *signup.Snapshot) error {
	sealed, err := s.sealer.Seal(snap)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	r := &signup.Request{
		ID:        uuid.NewString(),
		TenantID:  snap.Tenant,
		EmailHash: kernel.SaltedHash(s.cfg.SignupSalt, snap.Validated.Email),
		Data:      sealed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return err
	}
	logx.WithContext(ctx).WithField("signup_request_id", r.ID).Info("signup request awaits approval")

	if s.cfg.SignupNotifyEmail == "" {
		return nil
	}
	return s.mail.Schedule(ctx, mailer.Mail{
		Template: mailer.SignupRequested,
		To:       s.cfg.SignupNotifyEmail,
		Data:     map[string]any{"Applicant": snap.Validated.Email},
	})
}

func (s *SignupService) sendConfirmation(ctx context.Context, snap *signup.Snapshot) error {
	email := snap.Validated.Email
	if err := s.throttle.Allow(ctx, emailrequest.PurposeSignupConfirmation, email); err != nil {
		return err
	}
	code, err := s.sealer.Seal(snap)
	if err != nil {
		return err
	}
	return s.mail.ScheduleThrottled(ctx, emailrequest.PurposeSignupConfirmation, mailer.Mail{
		Template: mailer.SignupConfirmation,
		To:       email,
		Language: snap.Form.Language,
		Data: map[string]any{
			"Code": code,
			"Link": s.mail.Link("/confirm-signup", url.Values{"code": {code}}),
		},
	})
}

func (s *SignupService) open(r *signup.Request) (*signup.Snapshot, error) {
	var snap signup.Snapshot
	if err := s.sealer.Open(r.Data, noExpiry, &snap); err != nil {
		return nil, errx.Wrap(err, "open signup request", errx.TypeInternal).WithDetail("signup_request_id", r.ID)
	}
	return &snap, nil
}

func (s *SignupService) checkEmailFree(ctx context.Context, tenant kernel.TenantID, email string) error {
	taken, err := s.users.EmailTaken(ctx, tenant, email)
	if err != nil {
		return err
	}
	if taken {
		return user.ErrEmailTaken()
	}
	return nil
}
