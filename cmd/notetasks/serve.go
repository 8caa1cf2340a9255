package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/notetasks/internal/core"
	"github.com/joseph-ayodele/notetasks/internal/export"
	"github.com/joseph-ayodele/notetasks/internal/ingest"
	repo "github.com/joseph-ayodele/notetasks/internal/repository"
	"github.com/joseph-ayodele/notetasks/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC APIs with the extraction workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if err := repo.Migrate(ctx, a.db, logger); err != nil {
			a.db.Close(logger)
			return err
		}
		if err := a.startWorkers(ctx); err != nil {
			a.db.Close(logger)
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			a.close(shutdownCtx)
		}()

		cleaner := core.NewCleaner(logger, a.jobs, a.store)
		if cfg.Cleanup.Schedule != "" {
			sched, err := cleaner.Schedule(cfg.Cleanup.Schedule, cfg.Cleanup.Retention, cfg.Cleanup.Timeout)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
			logger.Info("cleanup.scheduled", "schedule", cfg.Cleanup.Schedule, "retention", cfg.Cleanup.Retention)
		}

		grpcServer, health := server.NewGRPCServer(server.NewJobService(a.jobs, logger))
		httpServer := &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: server.NewHTTPHandler(server.HTTPDeps{
				Jobs:     a.jobs,
				Uploader: a.ingest,
				Exporter: export.NewService(a.jobs, logger),
				Health: func(ctx context.Context) error {
					return a.db.HealthCheck(ctx, 2*time.Second, logger)
				},
				MaxUploadBytes: cfg.Storage.MaxUploadBytes,
				Logger:         logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		// initialize the backend up front so the first job does not pay for it
		g.Go(func() error {
			active, err := a.engine.Active(gctx)
			if err != nil {
				logger.Error("engine.init.failed", "error", err)
				return err
			}
			server.SetServing(health)
			logger.Info("engine.ready", "backend", active.Kind(), "real_backend", active.RealBackendAvailable())
			return nil
		})

		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
			if err != nil {
				return err
			}
			logger.Info("grpc.listening", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(lis)
		})

		g.Go(func() error {
			logger.Info("http.listening", "addr", cfg.Server.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		if cfg.Server.WatchDir != "" {
			g.Go(func() error {
				err := a.ingest.Watch(gctx, ingest.WatchConfig{
					Roots:       []string{cfg.Server.WatchDir},
					InitialScan: true,
					Debounce:    500 * time.Millisecond,
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http.shutdown.failed", "error", err)
			}
			grpcServer.GracefulStop()
			return nil
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("serve stopped", "error", err)
			return err
		}
		return nil
	},
}
