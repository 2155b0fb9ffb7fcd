// Package main is the entrypoint for the VideoForge API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/videoforge/videoforge/internal/api"
	"github.com/videoforge/videoforge/internal/api/handler"
	mw "github.com/videoforge/videoforge/internal/api/middleware"
	"github.com/videoforge/videoforge/internal/api/response"
	"github.com/videoforge/videoforge/internal/cache"
	"github.com/videoforge/videoforge/internal/catalog"
	"github.com/videoforge/videoforge/internal/config"
	"github.com/videoforge/videoforge/internal/cookiepool"
	"github.com/videoforge/videoforge/internal/fetch"
	"github.com/videoforge/videoforge/internal/job"
	"github.com/videoforge/videoforge/internal/pipeline"
	"github.com/videoforge/videoforge/internal/planner"
	"github.com/videoforge/videoforge/internal/render"
	"github.com/videoforge/videoforge/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"planner", cfg.Planner.Provider,
		"render", cfg.Render.Provider,
		"storage", cfg.Storage.Backend,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := catalog.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := catalog.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Load the cookie pool
	cookies, err := cookiepool.Load(cfg.Pool.CookieDir, cookiepool.Options{
		Cooldown:               cfg.Pool.Cooldown,
		MaxConsecutiveFailures: cfg.Pool.MaxConsecutiveFailures,
		MinSuccessRate:         cfg.Pool.MinSuccessRate,
		MinSamples:             cfg.Pool.MinSamples,
	})
	if err != nil {
		return fmt.Errorf("load cookie pool: %w", err)
	}
	slog.Info("cookie pool loaded", "cookies", cookies.Size())

	// 6. Create providers
	plannerProvider, err := planner.NewProvider(cfg.Planner)
	if err != nil {
		return fmt.Errorf("create planner provider: %w", err)
	}
	slog.Info("planner provider initialized", "provider", plannerProvider.Name())

	generator, err := render.NewGenerator(cfg.Render)
	if err != nil {
		return fmt.Errorf("create image generator: %w", err)
	}
	slog.Info("image generator initialized", "provider", generator.Name())

	uploader, err := storage.NewUploader(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create uploader: %w", err)
	}

	fetcher := fetch.New(cookies, fetch.NewYtDlp(), cfg.Fetch.AttemptTimeout, cfg.Fetch.TimeoutCountsAsBlock)

	// 7. Create stores and the pipeline
	catalogStore := catalog.NewPostgresStore(pool)

	broadcaster := job.NewBroadcaster()
	jobStore := job.NewMemoryStore(job.NewCacheMirror(redisCache, broadcaster, cfg.Redis.StatusTTL))

	stages := []pipeline.Stage{
		&pipeline.BreakdownStage{
			Provider: plannerProvider,
			W:        cfg.Pipeline.BreakdownWeight,
			Estimate: cfg.Pipeline.BreakdownEstimate,
		},
		&pipeline.SourcingStage{
			Fetcher:     fetcher,
			MaxAttempts: cfg.Fetch.MaxAttempts,
			Concurrency: cfg.Pipeline.SourcingConcurrency,
			W:           cfg.Pipeline.SourcingWeight,
			Estimate:    cfg.Pipeline.SourcingEstimate,
		},
		&pipeline.ImagingStage{
			Generator: generator,
			W:         cfg.Pipeline.ImagingWeight,
			Estimate:  cfg.Pipeline.ImagingEstimate,
		},
		&pipeline.AssemblyStage{
			FrameRate: cfg.Pipeline.FrameRate,
			Width:     cfg.Pipeline.Width,
			Height:    cfg.Pipeline.Height,
			W:         cfg.Pipeline.AssemblyWeight,
			Estimate:  cfg.Pipeline.AssemblyEstimate,
		},
		&pipeline.ExportStage{
			Uploader: uploader,
			W:        cfg.Pipeline.ExportWeight,
			Estimate: cfg.Pipeline.ExportEstimate,
		},
	}

	executor, err := pipeline.NewExecutor(jobStore, stages, catalogStore,
		cfg.Pipeline.WorkDir, cfg.Pipeline.Workers, cfg.Pipeline.QueueCapacity)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	executor.Start(ctx)
	slog.Info("pipeline started", "workers", cfg.Pipeline.Workers)

	// 8. Build router with dependencies
	auth := mw.NewAuth(cfg.Auth.APIKeyHashes)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Auth.RequestsPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(catalogStore, redisCache, cookies),

		SubmitJobHandler: handler.NewSubmitJobHandler(executor),
		GetJobHandler:    handler.NewGetJobHandler(jobStore),
		JobEventsHandler: handler.NewJobEventsHandler(jobStore, broadcaster),
		CancelJobHandler: handler.NewCancelJobHandler(jobStore, executor),

		PoolStatsHandler: handler.NewPoolStatsHandler(cookies),

		ListProjectsHandler: handler.NewListProjectsHandler(catalogStore),
		GetProjectHandler:   handler.NewGetProjectHandler(catalogStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// SSE connections stay open as long as the job runs.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity and reports how many
// cookies the pool currently holds.
func healthHandler(s catalog.Store, c cache.Cache, pool *cookiepool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
			"cookies":  pool.Size(),
		})
	}
}
