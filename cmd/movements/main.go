package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finwise/movements-api-go/internal/authz"
	"github.com/finwise/movements-api-go/internal/config"
	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/handler"
	"github.com/finwise/movements-api-go/internal/infra/cache"
	"github.com/finwise/movements-api-go/internal/infra/observability"
	"github.com/finwise/movements-api-go/internal/infra/resilience"
	"github.com/finwise/movements-api-go/internal/infra/supabase"
	"github.com/finwise/movements-api-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("report_cache_ttl", cfg.ReportCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrent_exports", cfg.MaxConcurrentExports),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "movements-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	exportBulkhead := resilience.NewBulkhead(cfg.MaxConcurrentExports)

	// --- Store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Services ---
	policy := authz.NewPolicy(store, logger)
	reportCache := cache.New[domain.Report](cfg.ReportCacheTTL)
	reportSvc := service.NewReportService(store, store, policy, reportCache, exportBulkhead, metrics, logger)
	movementSvc := service.NewMovementService(store, policy, reportSvc, metrics, logger)
	userSvc := service.NewUserService(store, policy, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(movementSvc, userSvc, reportSvc, metrics, store, []byte(cfg.JWTSecret), logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
