package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/garnizeh/wildspot/api"
	"github.com/garnizeh/wildspot/internal/ai"
	"github.com/garnizeh/wildspot/internal/badges"
	"github.com/garnizeh/wildspot/internal/blob"
	"github.com/garnizeh/wildspot/internal/geo"
	"github.com/garnizeh/wildspot/internal/intake"
	"github.com/garnizeh/wildspot/internal/jobs"
	"github.com/garnizeh/wildspot/internal/metrics"
	"github.com/garnizeh/wildspot/internal/tasks"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the award retry workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), g)
		},
	}
}

func serve(ctx context.Context, g *globalFlags) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	logger.Info("starting wildspot", "version", version, "buildTime", buildTime, "provider", cfg.EngineConfig.Provider)

	d, repo, err := openStore(ctx, cfg, logger, cfg.MigrateOnStart)
	if err != nil {
		return err
	}
	defer d.Close()

	blobs, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	provider, err := ai.NewProvider(ctx, cfg, repo, repo, logger)
	if err != nil {
		return fmt.Errorf("ai provider: %w", err)
	}
	defer provider.Close()
	geocoder, err := geo.New(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout, nil, logger)
	if err != nil {
		return fmt.Errorf("geocoder: %w", err)
	}
	window, err := badges.ParseWindowPolicy(cfg.Badges.DailyWindow)
	if err != nil {
		return err
	}

	m := metrics.New()
	queue := jobs.NewQueue(repo, cfg.Jobs.MaxAttempts)
	intakeSvc := intake.NewService(repo, blobs, provider.Classifier, queue, m, intake.Config{
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Window:         window,
	}, logger)
	tasksSvc := tasks.NewService(repo, geocoder, provider.Suggester, logger)

	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{
		intake.JobGrantAward: intakeSvc.HandleGrantAward,
	}, logger, jobs.Options{Workers: cfg.Jobs.Workers, Metrics: m})

	api.SetLogger(logger)
	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Store:    repo,
		Blobs:    blobs,
		Tasks:    tasksSvc,
		Intake:   intakeSvc,
		Metrics:  m,
		DB:       d.GetConn(),
		Provider: provider,
	})

	// Classification can take as long as the engine timeout, so writes get that much
	// on top of the API timeout.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.APITimeout,
		WriteTimeout:      cfg.APITimeout + cfg.EngineConfig.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		return pool.Run(gctx)
	})
	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := grp.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
