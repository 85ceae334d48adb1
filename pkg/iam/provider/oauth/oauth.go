// Package oauth holds the identity providers backed by an external account:
// Google sign-in through a verified ID token and GitHub through an OAuth code.
package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/asyncx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// linker is the part every external provider shares: the external id is
// the provider_id of the link row.
type linker struct {
	name    string
	users   user.Repository
	repo    provider.Repository
	clock   kernel.Clock
	timeout time.Duration
}

func (l *linker) Name() string { return l.name }

func (l *linker) Login(ctx context.Context, tenant kernel.TenantID, v *provider.Validated) (*user.User, error) {
	lp, err := l.repo.FindByProviderID(ctx, l.name, v.ProviderID)
	if err != nil {
		if errx.HasCode(err, provider.CodeNotFound) {
			return nil, provider.ErrLoginFailed()
		}
		return nil, err
	}
	u, err := l.users.FindByID(ctx, tenant, lp.UserID)
	if err != nil {
		if errx.HasCode(err, user.CodeNotFound) {
			return nil, provider.ErrLoginFailed()
		}
		return nil, err
	}

	lp.Data = lp.Data.Merge(v.Data)
	lp.UpdatedAt = l.clock.Now()
	if err := l.repo.UpdateData(ctx, lp); err != nil {
		return nil, err
	}
	return u, nil
}

// Finalize links v to u. An external account already linked anywhere fails
// with ErrAlreadyLinked.
func (l *linker) Finalize(ctx context.Context, u *user.User, v *provider.Validated) error {
	lp := provider.NewLoginProvider(u, l.name, v.ProviderID, kernel.Attributes(v.Data), l.clock.Now())
	return l.repo.Create(ctx, lp)
}

func (l *linker) Associate(ctx context.Context, u *user.User, v *provider.Validated) error {
	return l.Finalize(ctx, u, v)
}

// call runs a remote exchange bounded by the provider timeout. Remote
// failures become ErrAuthFailed, a timeout is reported as such.
func call[T any](ctx context.Context, l *linker, fn func(context.Context) (T, error)) (T, error) {
	v, err := asyncx.WithTimeout(ctx, l.timeout, fn)
	if err == nil {
		return v, nil
	}
	var e *errx.Error
	if errors.As(err, &e) {
		return v, e
	}
	authErr := provider.ErrAuthFailed().WithDetail("provider", l.name).WithCause(err)
	if errors.Is(err, context.DeadlineExceeded) {
		authErr = authErr.WithDetail("reason", "timeout")
	}
	return v, authErr
}

func newLinker(name string, users user.Repository, repo provider.Repository, clock kernel.Clock, timeout time.Duration) linker {
	if clock == nil {
		clock = kernel.SystemClock
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return linker{name: name, users: users, repo: repo, clock: clock, timeout: timeout}
}
