// Package iamcontainer builds the identity dependency graph: repositories,
// services, providers, mail dispatch and HTTP handlers.
package iamcontainer

import (
	"context"
	"net/http"
	netmail "net/mail"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/fsx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokenapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokeninfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken/accesstokensrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest/emailrequestapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/envelope"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/metrics"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/oauth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/password"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/password/passwordapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/providerinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/providersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/scopes"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup/signupapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup/signupinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/signup/signupsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant/tenantsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Deps are the external resources the container is built on
type Deps struct {
	DB  *sqlx.DB
	Cfg *config.Config

	// Redis backs the job queue when Cfg.Jobx.Backend is "redis"
	Redis *redis.Client

	// Mail delivers rendered e-mails. Required unless Enqueuer is set.
	Mail notifx.EmailSender

	// Templates overrides built-in mail templates, optional
	Templates fsx.FileReader

	// Enqueuer overrides the configured job backend
	Enqueuer jobx.JobEnqueuer

	// Metrics is optional
	Metrics *metrics.Collector

	// HTTP is used for JWKS and GitHub calls, nil means a default client
	HTTP *http.Client

	Clock kernel.Clock
}

type Container struct {
	cfg *config.Config
	db  *sqlx.DB

	Tenants     *tenantsrv.TenantService
	Users       *usersrv.UserService
	Tokens      *accesstokensrv.AccessTokenService
	Providers   *providersrv.LoginProviderService
	Password    *password.Provider
	Invitations *invitationsrv.InvitationService
	Signups     *signupsrv.SignupService
	Catalog     *scopes.Catalog
	Middleware  *auth.TokenMiddleware

	// Jobs runs queued mails. It is nil unless the redis backend is used.
	Jobs   *jobx.Client
	Sender *mailer.Sender

	metrics  *metrics.Collector
	handlers []interface {
		RegisterRoutes(r fiber.Router, uow fiber.Handler)
	}
}

// New wires every component. Order: repositories, infrastructure,
// services, handlers.
func New(ctx context.Context, d Deps) (*Container, error) {
	cfg := d.Cfg
	if d.Clock == nil {
		d.Clock = kernel.SystemClock
	}
	c := &Container{cfg: cfg, db: d.DB, metrics: d.Metrics}

	var (
		authObs     auth.Observer
		throttleObs emailrequest.Observer
		mailObs     mailer.DeliveryObserver
	)
	if d.Metrics != nil {
		authObs, throttleObs, mailObs = d.Metrics, d.Metrics, d.Metrics
	}

	// ── Repositories ─────────────────────────────────────────────────────

	tenantRepo := tenantinfra.NewSQLTenantRepository(d.DB)
	userRepo := userinfra.NewSQLUserRepository(d.DB)
	tokenRepo := accesstokeninfra.NewSQLAccessTokenRepository(d.DB)
	providerRepo := providerinfra.NewSQLLoginProviderRepository(d.DB)
	invitationRepo := invitationinfra.NewSQLInvitationRepository(d.DB)
	signupRepo := signupinfra.NewSQLSignupRequestRepository(d.DB)

	// ── Infrastructure ───────────────────────────────────────────────────

	auditSvc := audit.NewLogxService(d.Clock)
	sealer := envelope.New(cfg.Auth.EnvelopeSecret, d.Clock)
	gate := cryptotoken.NewGate(d.DB, d.Clock)
	throttle := emailrequest.NewThrottle(d.DB, cfg.Throttle, d.Clock, throttleObs)
	blocker := emailrequest.NewBlocker(throttle, sealer, gate, cfg.Auth.BlockTTL)
	c.Catalog = scopes.NewCatalog(cfg.Settings)

	enqueuer, err := c.dispatcher(ctx, d, mailObs)
	if err != nil {
		return nil, err
	}
	mail := mailer.NewMailer(enqueuer, blocker, cfg.Server.PublicURL)

	// ── Services ─────────────────────────────────────────────────────────

	languages := cfg.Settings.Languages
	c.Tenants = tenantsrv.NewTenantService(tenantRepo, d.Clock, cfg.Tenancy.CacheTTL)
	c.Tokens = accesstokensrv.NewAccessTokenService(tokenRepo, userRepo, c.Catalog, cfg.Auth, d.Clock, auditSvc)
	c.Users = usersrv.NewUserService(userRepo, throttle, mail, auditSvc, d.Clock, languages)
	c.Invitations = invitationsrv.NewInvitationService(invitationRepo, throttle, mail, d.Clock)

	c.Password, err = password.New(userRepo, providerRepo, throttle, mail, auditSvc, password.Options{
		BcryptCost: cfg.Auth.BcryptCost,
		ResetTTL:   cfg.Auth.ResetCodeTTL,
		Clock:      d.Clock,
	})
	if err != nil {
		return nil, err
	}
	registry := provider.NewRegistry(c.externalProviders(d, userRepo, providerRepo, c.Password)...)
	c.Providers = providersrv.NewLoginProviderService(registry, providerRepo, auditSvc)

	c.Signups = signupsrv.NewSignupService(signupsrv.Deps{
		Registry:    registry,
		Users:       userRepo,
		Requests:    signupRepo,
		Invitations: c.Invitations,
		Tokens:      c.Tokens,
		Throttle:    throttle,
		Mail:        mail,
		Sealer:      sealer,
		Gate:        gate,
		Audit:       auditSvc,
		Clock:       d.Clock,
	}, cfg.Auth, languages)

	// ── Handlers ─────────────────────────────────────────────────────────

	c.Middleware = auth.NewTokenMiddleware(c.Tokens, cfg.Auth.CookieName, authObs)
	c.handlers = append(c.handlers,
		auth.NewAuthHandlers(c.Providers, c.Tokens, c.Middleware, auditSvc, cfg),
		passwordapi.NewPasswordHandlers(c.Password, c.Middleware),
		signupapi.NewSignupHandlers(c.Signups, c.Middleware, auth.NewSessionCookie(cfg)),
		userapi.NewUserHandlers(c.Users, c.Middleware),
		accesstokenapi.NewAccessTokenHandlers(c.Tokens, c.Catalog, c.Users, c.Middleware),
		invitationapi.NewInvitationHandlers(c.Invitations, c.Middleware),
		emailrequestapi.NewBlockHandlers(blocker),
	)

	logx.WithField("providers", registry.Names()).Info("identity container initialized")
	return c, nil
}

// dispatcher picks where scheduled mails go and registers the sender on it
func (c *Container) dispatcher(ctx context.Context, d Deps, obs mailer.DeliveryObserver) (jobx.JobEnqueuer, error) {
	if d.Enqueuer != nil {
		return d.Enqueuer, nil
	}

	from := d.Cfg.Notifx.FromAddress
	if d.Cfg.Notifx.FromName != "" {
		from = (&netmail.Address{Name: d.Cfg.Notifx.FromName, Address: from}).String()
	}
	sender, err := mailer.NewSender(notifx.NewClient(d.Mail, from), obs)
	if err != nil {
		return nil, err
	}
	if d.Templates != nil {
		if err := sender.LoadOverrides(ctx, d.Templates, d.Cfg.Settings.Languages); err != nil {
			return nil, err
		}
	}
	sender.UseConfigSet(d.Cfg.Notifx.SESConfigSet)
	c.Sender = sender

	if d.Cfg.Jobx.Backend == "redis" {
		c.Jobs = jobx.NewClient(jobxredis.NewRedisQueue(d.Redis, d.Clock), jobx.FromConfig(d.Cfg.Jobx))
		sender.Register(c.Jobs)
		return c.Jobs, nil
	}

	inline := jobx.NewInline()
	sender.Register(inline)
	logx.Warn("mails are sent inline, configure JOBX_BACKEND=redis to queue them")
	return inline, nil
}

// externalProviders lists password plus every OAuth provider with a
// configured client id
func (c *Container) externalProviders(d Deps, users user.Repository, links provider.Repository, pw *password.Provider) []provider.Provider {
	cfg := d.Cfg
	out := []provider.Provider{pw}

	if cfg.OAuth.GoogleClientID != "" {
		out = append(out, oauth.NewGoogle(users, links,
			oauth.NewJWKS(cfg.OAuth.GoogleJWKSURL, cfg.OAuth.JWKSCacheTTL, d.HTTP),
			oauth.GoogleConfig{
				ClientID: cfg.OAuth.GoogleClientID,
				Issuers:  cfg.OAuth.GoogleIssuers,
				Timeout:  cfg.Auth.ProviderTimeout,
				Clock:    d.Clock,
			}))
	}
	if cfg.OAuth.GitHubClientID != "" {
		out = append(out, oauth.NewGitHub(users, links,
			oauth.NewGitHubClient(cfg.OAuth, d.HTTP), d.Clock, cfg.Auth.ProviderTimeout))
	}
	return out
}

// RegisterRoutes mounts the identity API on r. The tenant resolver runs
// first, then each route opens its own unit of work.
func (c *Container) RegisterRoutes(r fiber.Router) {
	r.Use(tenantapi.Resolver(c.Tenants, c.cfg.Tenancy))
	uow := store.Middleware(c.db)
	for _, h := range c.handlers {
		h.RegisterRoutes(r, uow)
	}
}

// RegisterOperational mounts routes that need no tenant
func (c *Container) RegisterOperational(r fiber.Router) {
	r.Get("/health", func(ctx *fiber.Ctx) error {
		if err := c.db.PingContext(ctx.UserContext()); err != nil {
			logx.WithError(err).Warn("health check: database unreachable")
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return ctx.JSON(fiber.Map{"status": "healthy"})
	})
	if c.metrics != nil {
		c.metrics.RegisterRoutes(r)
	}
}
