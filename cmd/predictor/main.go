package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/prediction-orchestrator/internal/api"
	"github.com/af-corp/prediction-orchestrator/internal/auth"
	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/coordinator"
	"github.com/af-corp/prediction-orchestrator/internal/health"
	"github.com/af-corp/prediction-orchestrator/internal/router"
	"github.com/af-corp/prediction-orchestrator/internal/screen"
	"github.com/af-corp/prediction-orchestrator/internal/spend"
	"github.com/af-corp/prediction-orchestrator/internal/store"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := loader.Config()
	logger = newLogger(os.Stdout, cfg.Telemetry)
	slog.SetDefault(logger)

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (predictions will not be persisted)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (shared throttles, spend and caches disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	// Build provider registry and fallback resolver. An invalid fallback graph is fatal.
	buildOpts := func() router.BuildOptions {
		return router.BuildOptions{
			Orchestration: loader.Config().Orchestration,
			Redis:         rdb,
			Metrics:       metrics,
		}
	}
	registry, resolver, err := router.Build(loader.Providers(), loader.Models(), buildOpts())
	if err != nil {
		logger.Error("invalid provider configuration", "error", err)
		os.Exit(1)
	}
	orchestrator := router.NewOrchestrator(resolver, metrics)

	// Health tracking
	var healthStore health.Store
	switch cfg.Orchestration.Health.Store {
	case "memory":
		healthStore = health.NewMemoryStore()
	default:
		healthStore = health.NewPostgresStore(dbPool)
	}
	tracker := health.NewTracker(healthStore, cfg.Orchestration.Health, metrics)
	if err := tracker.Register(context.Background(), registry.IDs()...); err != nil {
		logger.Warn("failed to register models with health store", "error", err)
	}

	predictions := store.NewPredictionStore(dbPool, rdb)
	var spendTracker *spend.Tracker
	var spendRecorder coordinator.SpendRecorder
	if rdb != nil {
		spendTracker = spend.NewTracker(rdb)
		spendRecorder = spendTracker
	}

	coord := coordinator.New(coordinator.Options{
		Registry:       registry,
		Caller:         orchestrator,
		Health:         tracker,
		Store:          predictions,
		Spend:          spendRecorder,
		Metrics:        metrics,
		MaxConcurrency: cfg.Orchestration.MaxConcurrency,
	})

	loader.OnReload(func() {
		newRegistry, newResolver, err := router.Build(loader.Providers(), loader.Models(), buildOpts())
		if err != nil {
			logger.Error("rejected provider reload, keeping previous registry", "error", err)
			return
		}
		if err := tracker.Register(context.Background(), newRegistry.IDs()...); err != nil {
			logger.Warn("failed to register reloaded models", "error", err)
		}
		coord.SetRegistry(newRegistry)
		orchestrator.SetResolver(newResolver)
		logger.Info("provider registry reloaded", "models", len(newRegistry.IDs()))
	})

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Build handler
	keyStore := auth.NewCachedKeyStore(dbPool, rdb)
	var spendSource api.SpendSource
	if spendTracker != nil {
		spendSource = spendTracker
	}
	handler := api.NewHandler(api.Deps{
		Predictor: coord,
		Health:    tracker,
		Stats:     predictions,
		Spend:     spendSource,
		Screener: screen.NewScreener(func() config.ScreeningConfig {
			return loader.Config().Screening
		}),
		Metrics: metrics,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler, keyStore, version),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Telemetry.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.MetricsPort),
			Handler: mux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("predictor starting", "addr", addr, "version", version, "models", len(registry.IDs()))
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if metricsSrv != nil {
		metricsSrv.Shutdown(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("predictor stopped")
}

func newLogger(w io.Writer, cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
