package providersrv_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/audit"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/providerinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider/providersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store/storetest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyProvider identifies accounts by an opaque key linked to them
type keyProvider struct {
	name  string
	links provider.Repository
	users user.Repository
	modes []provider.Mode
}

func (p *keyProvider) Name() string { return p.name }

func (p *keyProvider) Validate(_ context.Context, raw json.RawMessage, mode provider.Mode) (*provider.Validated, error) {
	p.modes = append(p.modes, mode)
	var in struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(raw, &in); err != nil || in.Key == "" {
		return nil, provider.ErrAuthFailed()
	}
	return &provider.Validated{ProviderID: in.Key}, nil
}

func (p *keyProvider) Login(ctx context.Context, tenant kernel.TenantID, v *provider.Validated) (*user.User, error) {
	lp, err := p.links.FindByProviderID(ctx, p.name, v.ProviderID)
	if err != nil {
		return nil, provider.ErrLoginFailed()
	}
	u, err := p.users.FindByID(ctx, tenant, lp.UserID)
	if err != nil {
		return nil, provider.ErrLoginFailed()
	}
	return u, nil
}

func (p *keyProvider) Finalize(ctx context.Context, u *user.User, v *provider.Validated) error {
	return p.Associate(ctx, u, v)
}

func (p *keyProvider) Associate(ctx context.Context, u *user.User, v *provider.Validated) error {
	return p.links.Create(ctx, provider.NewLoginProvider(u, p.name, v.ProviderID, nil, time.Now().UTC()))
}

type fixture struct {
	db     *sqlx.DB
	svc    *providersrv.LoginProviderService
	users  user.Repository
	key    *keyProvider
	tenant kernel.TenantID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := storetest.Open(t)
	users := userinfra.NewSQLUserRepository(db)
	links := providerinfra.NewSQLLoginProviderRepository(db)

	key := &keyProvider{name: "key", links: links, users: users}
	other := &keyProvider{name: "other", links: links, users: users}
	return &fixture{
		db:     db,
		svc:    providersrv.NewLoginProviderService(provider.NewRegistry(key, other), links, audit.NewLogxService(nil)),
		users:  users,
		key:    key,
		tenant: storetest.Tenant(t, db, "acme"),
	}
}

func (f *fixture) user(t *testing.T, email string) *user.User {
	t.Helper()
	u := user.New(f.tenant, email, "en", time.Now().UTC())
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func raw(key string) json.RawMessage {
	return json.RawMessage(`{"key":"` + key + `"}`)
}

func TestLoginThroughLinkedProvider(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u := f.user(t, "ann@example.com")
	require.NoError(t, f.svc.Associate(ctx, u, "key", raw("k-1")))

	got, err := f.svc.Login(ctx, f.tenant, "key", raw("k-1"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []provider.Mode{provider.ModeAssociate, provider.ModeLogin}, f.key.modes)

	_, err = f.svc.Login(ctx, f.tenant, "key", raw("k-2"))
	assert.True(t, errx.HasCode(err, provider.CodeLoginFailed))

	_, err = f.svc.Login(ctx, f.tenant, "missing", raw("k-1"))
	assert.True(t, errx.HasCode(err, provider.CodeUnknownProvider))
}

func TestDisabledAccountLooksUnknown(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u := f.user(t, "ann@example.com")
	require.NoError(t, f.svc.Associate(ctx, u, "key", raw("k-1")))

	u.Disabled = true
	require.NoError(t, f.users.Update(ctx, u))

	_, err := f.svc.Login(ctx, f.tenant, "key", raw("k-1"))
	assert.True(t, errx.HasCode(err, provider.CodeLoginFailed))
}

func TestIdentityLinksToOneAccount(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ann := f.user(t, "ann@example.com")
	bob := f.user(t, "bob@example.com")

	require.NoError(t, f.svc.Associate(ctx, ann, "key", raw("k-1")))
	err := f.svc.Associate(ctx, bob, "key", raw("k-1"))
	assert.True(t, errx.HasCode(err, provider.CodeAlreadyLinked))
}

func TestLastProviderStays(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ann := f.user(t, "ann@example.com")
	bob := f.user(t, "bob@example.com")
	require.NoError(t, f.svc.Associate(ctx, ann, "key", raw("k-1")))
	require.NoError(t, f.svc.Associate(ctx, bob, "key", raw("k-2")))

	linked, err := f.svc.List(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	keyID := linked[0].ID

	err = f.svc.Delete(ctx, ann.ID, keyID)
	assert.True(t, errx.HasCode(err, provider.CodeLastProvider))

	require.NoError(t, f.svc.Associate(ctx, ann, "other", raw("o-1")))

	// providers of other accounts are invisible
	bobs, err := f.svc.List(ctx, bob.ID)
	require.NoError(t, err)
	err = f.svc.Delete(ctx, ann.ID, bobs[0].ID)
	assert.True(t, errx.HasCode(err, provider.CodeNotFound))

	require.NoError(t, f.svc.Delete(ctx, ann.ID, keyID))
	linked, err = f.svc.List(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "other", linked[0].Provider)
}

func TestConcurrentDeletesKeepOneProvider(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ann := f.user(t, "ann@example.com")
	require.NoError(t, f.svc.Associate(ctx, ann, "key", raw("k-1")))
	require.NoError(t, f.svc.Associate(ctx, ann, "other", raw("o-1")))

	linked, err := f.svc.List(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)

	errs := make([]error, len(linked))
	var wg sync.WaitGroup
	for i, lp := range linked {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.WithinTx(ctx, f.db, func(ctx context.Context) error {
				return f.svc.Delete(ctx, ann.ID, lp.ID)
			})
		}()
	}
	wg.Wait()

	deleted, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			deleted++
		case errx.HasCode(err, provider.CodeLastProvider):
			refused++
		}
	}
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, refused)

	left, err := f.svc.List(ctx, ann.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestDeleteForUnknownAccount(t *testing.T) {
	f := setup(t)
	err := f.svc.Delete(context.Background(), kernel.UserID("missing"), "nope")
	assert.True(t, errx.HasCode(err, provider.CodeNotFound))
}
