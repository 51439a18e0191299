package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kustii/board/routes"
	"github.com/kustii/board/utils"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server with graceful shutdown.

SIGTERM or SIGINT drains in-flight requests. SIGUSR2 hands the listener
to a freshly started process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *RootOptions) error {
	a, err := newApp(opts.cfg)
	if err != nil {
		return err
	}
	return serve(a)
}

// serve runs the HTTP server until shutdown. a is closed when serve returns.
func serve(a *app) error {
	cfg := a.cfg
	provider, err := newAuthProvider(cfg)
	if err != nil {
		a.close()
		return err
	}

	if cfg.SeedOnStart {
		n, err := a.posts.Seed(context.Background())
		if err != nil {
			a.close()
			return err
		}
		utils.Logger.Info("seeded boards", zap.Int("posts", n))
	}

	r := routes.SetupRouter(routes.Deps{
		Config:   cfg,
		Registry: a.registry,
		Auth:     provider,
		Posts:    a.posts,
		Comments: a.comments,
		Cache:    newCache(cfg),
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DefaultReadTimeout, utils.DefaultWriteTimeout)

	bg, cancel := context.WithCancel(context.Background())
	srv.OnShutdown(cancel)
	if cfg.MirrorRepairCron != "" {
		if err := a.comments.StartMirrorRepairer(bg, cfg.MirrorRepairCron); err != nil {
			cancel()
			a.close()
			return err
		}
	}
	srv.OnShutdown(a.close)
	srv.OnShutdown(func() { _ = utils.Logger.Sync() })

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		// shutdown hooks only run after a signal
		cancel()
		a.close()
		utils.Logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	return nil
}
