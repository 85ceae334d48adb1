package invitationsrv_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/envelope"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/invitation/invitationsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer/mailertest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store/storetest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*invitationsrv.InvitationService, *user.User, *mailertest.Recorder, *kernel.FixedClock) {
	t.Helper()
	db := storetest.Open(t)
	clock := &kernel.FixedClock{T: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	mails := &mailertest.Recorder{}

	throttle := emailrequest.NewThrottle(db, config.ThrottleConfig{Ceiling: 4, Spacing: time.Hour}, clock, nil)
	sealer := envelope.New("0123456789abcdef0123456789abcdef", clock)
	mail := mailer.NewMailer(mails, emailrequest.NewBlocker(throttle, sealer, cryptotoken.NewGate(db, clock), time.Hour), "https://id.example.com")

	root := user.New(storetest.Tenant(t, db, "acme"), "root@example.com", "en", clock.Now())
	root.Superuser = true
	require.NoError(t, userinfra.NewSQLUserRepository(db).Create(context.Background(), root))

	return invitationsrv.NewInvitationService(invitationinfra.NewSQLInvitationRepository(db), throttle, mail, clock), root, mails, clock
}

func TestCreateMailsTheToken(t *testing.T) {
	svc, root, mails, _ := setup(t)

	inv, err := svc.Create(context.Background(), root, invitationsrv.CreateForm{Email: "Guest@Example.com", Message: "hi"})
	require.NoError(t, err)
	assert.Len(t, inv.Token, 2*invitation.TokenBytes)
	assert.Equal(t, "guest@example.com", inv.Email)
	assert.True(t, inv.Valid)

	m := mails.Last(mailer.Invitation, "guest@example.com")
	require.NotNil(t, m)
	assert.Equal(t, inv.Token, m.Data["Token"])
	assert.Equal(t, "root@example.com", m.Data["Email"])
	assert.Contains(t, m.Data["Link"], "invitation="+inv.Token)
}

func TestExpiredInvitationIsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, root, _, clock := setup(t)

	until := clock.Now().Add(48 * time.Hour)
	inv, err := svc.Create(ctx, root, invitationsrv.CreateForm{Email: "guest@example.com", ValidUntil: &until})
	require.NoError(t, err)

	clock.Advance(49 * time.Hour)
	_, err = svc.Accept(ctx, root.TenantID, inv.Token)
	assert.True(t, errx.HasCode(err, invitation.CodeInvalid))

	_, err = svc.Accept(ctx, root.TenantID, "00000000000000000000000000000000")
	assert.True(t, errx.HasCode(err, invitation.CodeInvalid))
}

func TestConcurrentAcceptWinsOnce(t *testing.T) {
	ctx := context.Background()
	svc, root, _, _ := setup(t)

	inv, err := svc.Create(ctx, root, invitationsrv.CreateForm{Email: "guest@example.com"})
	require.NoError(t, err)

	const n = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		invalid  int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Accept(ctx, root.TenantID, inv.Token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errx.HasCode(err, invitation.CodeInvalid):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, invalid)

	got, err := svc.Get(ctx, root.TenantID, inv.ID)
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.NotNil(t, got.AcceptedAt)
}
