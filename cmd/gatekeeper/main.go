package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamcontainer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/metrics"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// runtime holds what every command shares once the root ran
type runtime struct {
	cfg   *config.Config
	db    *sqlx.DB
	redis *redis.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logx.WithError(err).Error("gatekeeper failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "gatekeeper",
		Short:         "Identity and credential lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			rt.close()
		},
	}

	root.AddCommand(
		newServeCmd(rt),
		newWorkerCmd(rt),
		newMigrateCmd(rt),
		newTenantCmd(rt),
		newUserCmd(rt),
	)
	return root
}

func (rt *runtime) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt.cfg = cfg
	if cfg.Debug {
		logx.SetLevel(logx.LevelDebug)
	}

	rt.db, err = store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if cfg.Jobx.Backend == "redis" {
		rt.redis = jobxredis.NewRedisClient(cfg.Redis)
	}
	return nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		_ = rt.db.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}

// container builds the identity graph. The metrics collector is only
// passed by commands that serve it.
func (rt *runtime) container(ctx context.Context, m *metrics.Collector) (*iamcontainer.Container, error) {
	sender, err := iamcontainer.NewEmailSender(ctx, rt.cfg.Notifx)
	if err != nil {
		return nil, err
	}
	deps := iamcontainer.Deps{
		DB:      rt.db,
		Cfg:     rt.cfg,
		Redis:   rt.redis,
		Mail:    sender,
		Metrics: m,
	}
	if dir := rt.cfg.Notifx.TemplateDir; dir != "" {
		if deps.Templates, err = fsxlocal.NewLocalFileSystem(dir); err != nil {
			return nil, err
		}
	}
	return iamcontainer.New(ctx, deps)
}
