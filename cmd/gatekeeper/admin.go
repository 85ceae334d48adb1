package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/accesstoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/tenant"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/spf13/cobra"
)

func newWorkerCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued mails",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.container(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if c.Jobs == nil {
				return errx.New("the worker needs JOBX_BACKEND=redis", errx.TypeValidation)
			}
			return c.Jobs.Start(cmd.Context())
		},
	}
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and create the default tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), rt)
		},
	}
}

func migrate(ctx context.Context, rt *runtime) error {
	if err := store.Migrate(ctx, rt.db); err != nil {
		return err
	}
	c, err := rt.container(ctx, nil)
	if err != nil {
		return err
	}
	name := rt.cfg.Tenancy.DefaultTenant
	_, err = c.Tenants.Resolve(ctx, name)
	if errx.HasCode(err, tenant.CodeNotFound) {
		_, err = c.Tenants.Create(ctx, name)
	}
	if err != nil {
		return err
	}
	logx.WithField("default_tenant", name).Info("schema up to date")
	return nil
}

func newTenantCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.container(cmd.Context(), nil)
			if err != nil {
				return err
			}
			t, err := c.Tenants.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		},
	})
	return cmd
}

type userFlags struct {
	tenant      string
	email       string
	password    string
	language    string
	superuser   bool
	scopes      []string
	description string
	validFor    time.Duration
}

func newUserCmd(rt *runtime) *cobra.Command {
	var f userFlags
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}
	cmd.PersistentFlags().StringVar(&f.tenant, "tenant", "", "tenant name, defaults to TENANCY_DEFAULT")
	cmd.PersistentFlags().StringVar(&f.email, "email", "", "account e-mail")
	_ = cmd.MarkPersistentFlagRequired("email")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account, optionally with a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.inTx(cmd.Context(), func(ctx context.Context) error {
				return createUser(ctx, rt, cmd, f)
			})
		},
	}
	create.Flags().StringVar(&f.password, "password", "", "initial password")
	create.Flags().StringVar(&f.language, "language", "", "preferred language")
	create.Flags().BoolVar(&f.superuser, "superuser", false, "grant superuser status")

	token := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.inTx(cmd.Context(), func(ctx context.Context) error {
				return mintToken(ctx, rt, cmd, f)
			})
		},
	}
	token.Flags().StringSliceVar(&f.scopes, "scopes", nil, "token scopes, defaults to the configured default scopes")
	token.Flags().StringVar(&f.description, "description", "cli", "token description")
	token.Flags().DurationVar(&f.validFor, "valid-for", 0, "lifetime, 0 means no expiry")

	cmd.AddCommand(create, token)
	return cmd
}

func (rt *runtime) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return store.WithinTx(ctx, rt.db, fn)
}

func createUser(ctx context.Context, rt *runtime, cmd *cobra.Command, f userFlags) error {
	c, err := rt.container(ctx, nil)
	if err != nil {
		return err
	}
	t, err := c.Tenants.Resolve(ctx, rt.tenantName(f.tenant))
	if err != nil {
		return err
	}

	language := f.language
	if language == "" {
		language = rt.cfg.Settings.Languages[0]
	}
	u, err := c.Users.Create(ctx, t.ID, usersrv.CreateForm{
		Email:     f.email,
		Language:  language,
		Superuser: f.superuser,
	})
	if err != nil {
		return err
	}

	if f.password != "" {
		raw, err := json.Marshal(map[string]string{"email": u.Email, "password": f.password})
		if err != nil {
			return err
		}
		v, err := c.Password.Validate(ctx, raw, provider.ModeSignup)
		if err != nil {
			return err
		}
		if err := c.Password.Finalize(ctx, u, v); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), u.ID)
	return nil
}

func mintToken(ctx context.Context, rt *runtime, cmd *cobra.Command, f userFlags) error {
	c, err := rt.container(ctx, nil)
	if err != nil {
		return err
	}
	t, err := c.Tenants.Resolve(ctx, rt.tenantName(f.tenant))
	if err != nil {
		return err
	}
	u, err := c.Users.GetByEmail(ctx, t.ID, f.email)
	if err != nil {
		return err
	}

	form := accesstoken.APITokenForm{Scopes: f.scopes, Description: f.description}
	if len(form.Scopes) == 0 {
		form.Scopes = c.Catalog.Defaults()
	}
	if f.validFor > 0 {
		until := time.Now().UTC().Add(f.validFor)
		form.ValidUntil = &until
	}
	issued, err := c.Tokens.CreateAPIToken(ctx, u, form)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), issued.Token)
	return nil
}

func (rt *runtime) tenantName(name string) string {
	if name == "" {
		return rt.cfg.Tenancy.DefaultTenant
	}
	return name
}
