// Package main is the entrypoint for the statementlens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/internal/ai/provider"
	"github.com/todaycapital/statementlens/internal/api"
	"github.com/todaycapital/statementlens/internal/api/handler"
	mw "github.com/todaycapital/statementlens/internal/api/middleware"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/internal/auth"
	"github.com/todaycapital/statementlens/internal/blob"
	"github.com/todaycapital/statementlens/internal/cache"
	"github.com/todaycapital/statementlens/internal/config"
	"github.com/todaycapital/statementlens/internal/store"
)

const (
	shutdownTimeout     = 30 * time.Second
	defaultWriteTimeout = 10 * time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "storage", cfg.Storage.Backend, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Redis backs the report cache, rate limits and merge locks
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Statement file storage
	blobs, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}

	// 6. AI provider
	extractor, err := provider.New(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", extractor.Name())

	// 7. Services
	pgStore := store.NewPostgresStore(pool)
	accounts := auth.NewService(pgStore, auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	reports := ai.NewReportService(extractor, pgStore, blobs, redisCache, redisCache, ai.ServiceOptions{
		InferenceTimeout: cfg.AI.InferenceTimeout,
		LockTTL:          cfg.Reports.LockTTL,
		CacheTTL:         cfg.Reports.CacheTTL,
	})

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:        mw.NewAuth(accounts),
		RateLimit:   mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),
		FrontendURL: cfg.Server.FrontendURL,

		HealthHandler: healthHandler(pgStore, redisCache),

		Register:      handler.NewRegisterHandler(accounts),
		Login:         handler.NewLoginHandler(accounts),
		Me:            handler.NewMeHandler(accounts),
		UpdateProfile: handler.NewUpdateProfileHandler(accounts),

		UploadStatements:  handler.NewUploadStatementsHandler(reports),
		ListStatements:    handler.NewListStatementsHandler(reports),
		DeleteStatement:   handler.NewDeleteStatementHandler(reports),
		AnalyzeStatements: handler.NewAnalyzeStatementsHandler(reports),
		QuickAnalyze:      handler.NewQuickAnalyzeHandler(reports),

		CreateReport:   handler.NewCreateReportHandler(reports),
		ListReports:    handler.NewListReportsHandler(reports),
		LatestReport:   handler.NewLatestReportHandler(reports),
		MonthlyHistory: handler.NewMonthlyHistoryHandler(reports),
		GetReport:      handler.NewGetReportHandler(reports),
		AddStatements:  handler.NewAddStatementsHandler(reports),

		CreateLead:            handler.NewCreateLeadHandler(pgStore),
		GetLead:               handler.NewGetLeadHandler(pgStore),
		LeadAnalysisCompleted: handler.NewLeadAnalysisCompletedHandler(pgStore),
		UpdateLeadStatus:      handler.NewUpdateLeadStatusHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout(cfg.AI.InferenceTimeout),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// writeTimeout leaves room for a full extraction plus the response write.
func writeTimeout(inference time.Duration) time.Duration {
	if inference <= 0 {
		return defaultWriteTimeout
	}
	return inference + time.Minute
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
