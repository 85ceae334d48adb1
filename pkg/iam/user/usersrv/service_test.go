package usersrv_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/envelope"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer/mailertest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store/storetest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *usersrv.UserService
	mails  *mailertest.Recorder
	clock  *kernel.FixedClock
	tenant kernel.TenantID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := storetest.Open(t)
	f := &fixture{
		mails:  &mailertest.Recorder{},
		clock:  &kernel.FixedClock{T: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		tenant: storetest.Tenant(t, db, "acme"),
	}
	sealer := envelope.New("0123456789abcdef0123456789abcdef", f.clock)
	throttle := emailrequest.NewThrottle(db, config.ThrottleConfig{Ceiling: 4, Spacing: time.Hour}, f.clock, nil)
	blocker := emailrequest.NewBlocker(throttle, sealer, cryptotoken.NewGate(db, f.clock), 24*time.Hour)

	f.svc = usersrv.NewUserService(
		userinfra.NewSQLUserRepository(db),
		throttle,
		mailer.NewMailer(f.mails, blocker, "https://id.example.com"),
		audit.NewLogxService(f.clock),
		f.clock,
		[]string{"en", "de"},
	)
	return f
}

func (f *fixture) create(t *testing.T, email string, superuser bool) *user.User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), f.tenant, usersrv.CreateForm{Email: email, Language: "en", Superuser: superuser})
	require.NoError(t, err)
	return u
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	u := f.create(t, "Ann@Example.COM", false)
	assert.Equal(t, "ann@example.com", u.Email)

	got, err := f.svc.GetByEmail(ctx, f.tenant, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.svc.Create(ctx, f.tenant, usersrv.CreateForm{Email: "ann@example.com", Language: "en"})
	assert.True(t, errx.HasCode(err, user.CodeAlreadyExists))

	_, err = f.svc.Create(ctx, f.tenant, usersrv.CreateForm{Email: "bob@example.com", Language: "fr"})
	var e *errx.Error
	require.True(t, errx.As(err, &e))
	assert.Equal(t, errx.TypeValidation, e.Type)
}

func TestUpdateProfileMergesData(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u := f.create(t, "ann@example.com", false)

	_, err := f.svc.UpdateProfile(ctx, u, usersrv.ProfilePatch{Data: map[string]any{"theme": "dark"}})
	require.NoError(t, err)
	u, err = f.svc.UpdateProfile(ctx, u, usersrv.ProfilePatch{
		DisplayName: ptrx.String("ann.k"),
		Language:    ptrx.String("de"),
		Data:        map[string]any{"tz": "Europe/Berlin"},
	})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.tenant, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann.k", got.DisplayName)
	assert.Equal(t, "de", got.Language)
	assert.Equal(t, "dark", got.Data.String("theme"))
	assert.Equal(t, "Europe/Berlin", got.Data.String("tz"))

	_, err = f.svc.UpdateProfile(ctx, u, usersrv.ProfilePatch{DisplayName: ptrx.String("No Spaces")})
	assert.Error(t, err)
}

func TestEmailChangeIsThrottled(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u := f.create(t, "ann@example.com", false)

	require.NoError(t, f.svc.RequestEmailChange(ctx, u, "new@example.com"))
	first := f.mails.Last(mailer.EmailChange, "new@example.com")
	require.NotNil(t, first)
	assert.NotEmpty(t, first.BlockLink)

	err := f.svc.RequestEmailChange(ctx, u, "new@example.com")
	assert.True(t, errx.HasCode(err, emailrequest.CodeRateLimited))

	// the code is only stored hashed
	require.NotNil(t, u.EmailChangeCode)
	assert.NotEqual(t, first.Data["Code"], *u.EmailChangeCode)
}

func TestConfirmEmailChangeNeedsTheCode(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u := f.create(t, "ann@example.com", false)

	err := f.svc.ConfirmEmailChange(ctx, u, "123456")
	assert.True(t, errx.HasCode(err, user.CodeNoEmailChange))

	require.NoError(t, f.svc.RequestEmailChange(ctx, u, "new@example.com"))
	code := f.mails.Last(mailer.EmailChange, "new@example.com").Data["Code"].(string)

	err = f.svc.ConfirmEmailChange(ctx, u, code+"0")
	assert.True(t, errx.HasCode(err, user.CodeNoEmailChange))

	// the address was taken in between
	f.create(t, "new@example.com", false)
	err = f.svc.ConfirmEmailChange(ctx, u, code)
	assert.True(t, errx.HasCode(err, user.CodeEmailTaken))

	got, err := f.svc.Get(ctx, f.tenant, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email)
}

func TestSuperuserCannotLockThemselvesOut(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	root := f.create(t, "root@example.com", true)
	ann := f.create(t, "ann@example.com", false)

	_, err := f.svc.Update(ctx, root, root.ID, usersrv.AdminPatch{Disabled: ptrx.Bool(true)})
	assert.True(t, errx.HasCode(err, user.CodeSelfModify))

	_, err = f.svc.Update(ctx, root, root.ID, usersrv.AdminPatch{Superuser: ptrx.Bool(false)})
	assert.True(t, errx.HasCode(err, user.CodeSelfModify))

	err = f.svc.Delete(ctx, root, root.ID)
	assert.True(t, errx.HasCode(err, user.CodeCannotDeleteOwn))

	updated, err := f.svc.Update(ctx, root, ann.ID, usersrv.AdminPatch{Disabled: ptrx.Bool(true), Email: ptrx.String("Ann.K@example.com")})
	require.NoError(t, err)
	assert.True(t, updated.Disabled)
	assert.Equal(t, "ann.k@example.com", updated.Email)

	require.NoError(t, f.svc.Delete(ctx, root, ann.ID))
	_, err = f.svc.Get(ctx, f.tenant, ann.ID)
	assert.True(t, errx.HasCode(err, user.CodeNotFound))
}

func TestListPages(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	for _, e := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		f.create(t, e, false)
	}

	page, err := f.svc.List(ctx, f.tenant, usersrv.ListQuery{Limit: 2, Direction: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "a@example.com", page.Users[0].Email)
	assert.True(t, page.HasMore)

	page, err = f.svc.List(ctx, f.tenant, usersrv.ListQuery{Offset: 2, Limit: 2, Direction: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.False(t, page.HasMore)

	_, err = f.svc.List(ctx, f.tenant, usersrv.ListQuery{OrderBy: "password"})
	assert.Error(t, err)
}
