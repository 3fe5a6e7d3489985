package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/api"
	audithook "github.com/xraph/volshift/audit_hook"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/engine"
)

func newServeCmd(g *globals) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll stage activities and serve the event intake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), g, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create backend schema before starting")
	return cmd
}

func serve(parent context.Context, g *globals, migrate bool) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := cloud.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	clients := cloud.NewClients(awsCfg)

	st, release, err := openStore(ctx, cfg.Store, clients, logger)
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))

	if migrate {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return err
		}
	}

	rt, err := volshift.New(
		volshift.WithConfig(cfg.Volshift()),
		volshift.WithStore(st),
		volshift.WithLogger(logger),
	)
	if err != nil {
		_ = st.Close()
		return err
	}

	activities, err := cfg.Activities()
	if err != nil {
		_ = st.Close()
		return err
	}
	eng, err := engine.Build(rt, clients,
		engine.WithActivities(activities),
		engine.WithStateMachine(cfg.Orchestrator.StateMachineARN),
		engine.WithLimits(cfg.Limits...),
		engine.WithDLQRetention(cfg.DLQ.PurgeSchedule, cfg.DLQ.Retention),
		engine.WithExtension(audithook.New(audithook.NewSlogRecorder(logger.With(slog.String("component", "audit"))))),
	)
	if err != nil {
		_ = st.Close()
		return err
	}

	if err := eng.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}
	logger.Info("volshift started",
		slog.String("worker_id", eng.Pool().WorkerID().String()),
		slog.Int("activities", len(activities)),
		slog.String("store", cfg.Store.Backend),
	)

	grp, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.New(eng, api.WithAPIKey(cfg.HTTP.APIKey), api.WithLogger(logger)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		grp.Go(func() error {
			logger.Info("http intake listening", slog.String("addr", cfg.HTTP.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Runtime.ShutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, eng.Stop(shutdownCtx))
		return errors.Join(errs...)
	})

	err = grp.Wait()
	logger.Info("goodbye")
	return err
}
