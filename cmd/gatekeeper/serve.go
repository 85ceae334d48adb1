package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamcontainer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/metrics"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var withMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if withMigrate {
				if err := migrate(ctx, rt); err != nil {
					return err
				}
			}
			c, err := rt.container(ctx, metrics.New())
			if err != nil {
				return err
			}
			return serve(ctx, rt, c)
		},
	}
	cmd.Flags().BoolVar(&withMigrate, "migrate", false, "run migrate before starting")
	return cmd
}

func newApp(rt *runtime, c *iamcontainer.Container) *fiber.App {
	cfg := rt.cfg
	app := fiber.New(fiber.Config{
		AppName:               "gatekeeper",
		DisableStartupMessage: true,
		ErrorHandler:          errxfiber.ErrorHandler(cfg.Debug),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Debug}))
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Authorization, X-Request-ID, " + cfg.Tenancy.Header,
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: cfg.Server.CORSOrigins != "*",
		ExposeHeaders:    fiber.HeaderXRequestID,
	}))

	c.RegisterOperational(app)
	c.RegisterRoutes(app)
	return app
}

// serve runs the API until ctx ends. With the redis backend and
// JOBX_IN_PROCESS the mail worker runs in the same process.
func serve(ctx context.Context, rt *runtime, c *iamcontainer.Container) error {
	app := newApp(rt, c)
	addr := fmt.Sprintf(":%d", rt.cfg.Server.Port)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logx.WithField("addr", addr).Info("http server listening")
		if err := app.Listen(addr); err != nil {
			return errx.Wrap(err, "listen", errx.TypeInternal)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logx.Info("shutting down http server")
		return app.ShutdownWithTimeout(rt.cfg.Jobx.ShutdownTimeout)
	})
	if c.Jobs != nil && rt.cfg.Jobx.InProcess {
		g.Go(func() error { return c.Jobs.Start(ctx) })
	}
	return g.Wait()
}
