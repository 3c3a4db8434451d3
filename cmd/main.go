/**
 * @description
 * This is the main entry point for the gateway-service.
 * It loads configuration, wires the storage backends (Redis, PostgreSQL,
 * RabbitMQ or in-memory, per configuration), the upstream processor clients
 * and the routing engine, starts the worker pools and the cron scheduler,
 * serves the HTTP API, and coordinates graceful shutdown.
 */
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/routepay/gateway-service/internal/api"
	"github.com/routepay/gateway-service/internal/app"
	"github.com/routepay/gateway-service/internal/config"
	"github.com/routepay/gateway-service/internal/domain"
	"github.com/routepay/gateway-service/internal/processor"
	"github.com/routepay/gateway-service/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env for local development; in containers the variables come from
	// the environment directly.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg.LogActive(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage backends.
	redisClient := newRedisClientIfNeeded(ctx, cfg, logger)

	queueStore, closeQueue, err := buildQueueStore(cfg, redisClient)
	if err != nil {
		logger.Error("failed to initialize queue backend", "backend", cfg.QueueBackend, "error", err)
		os.Exit(1)
	}
	defer closeQueue()

	summaryStore, closeSummary, err := buildSummaryStore(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("failed to initialize summary backend", "backend", cfg.SummaryBackend, "error", err)
		os.Exit(1)
	}
	defer closeSummary()

	var healthStore store.HealthStore
	if redisClient != nil {
		healthStore = store.NewRedisHealthStore(redisClient)
	} else {
		// Single-instance mode: health coordination degrades to process-local.
		healthStore = store.NewMemoryHealthStore()
		logger.Warn("no REDIS_URL configured; health state is process-local")
	}

	// Upstream processor clients.
	clients := map[domain.Upstream]app.UpstreamClient{
		domain.UpstreamDefault: processor.NewClient(domain.UpstreamDefault,
			cfg.DefaultProcessorURL, cfg.HTTPConnectTimeout, cfg.HTTPResponseTimeout),
		domain.UpstreamFallback: processor.NewClient(domain.UpstreamFallback,
			cfg.FallbackProcessorURL, cfg.HTTPConnectTimeout, cfg.HTTPResponseTimeout),
	}

	service := app.NewService(queueStore, healthStore, summaryStore, clients, cfg, logger)
	service.Start(ctx)

	memmon := app.NewMemoryMonitor(cfg.MemoryReportThresholdMB, logger)
	scheduler := app.NewScheduler(service, memmon, logger)
	scheduler.Start(ctx)

	// HTTP server.
	handler := api.NewHandler(service, logger)
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: api.NewRouter(handler),
	}
	go func() {
		logger.Info("gateway listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Wait for termination.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	// Shutdown order: stop scheduling new probes, stop draining the queue,
	// then stop accepting HTTP. Queued payments survive in the durable queue.
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped")

	cancel()
	service.Stop(cfg.ShutdownGracePeriod)
	logger.Info("worker pools stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	logger.Info("gateway stopped gracefully")
}

func newRedisClientIfNeeded(ctx context.Context, cfg config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisURL == "" && cfg.QueueBackend != "redis" && cfg.SummaryBackend != "redis" {
		return nil
	}
	client, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	return client
}

func buildQueueStore(cfg config.Config, redisClient *redis.Client) (store.QueueStore, func(), error) {
	switch cfg.QueueBackend {
	case "redis":
		return store.NewRedisQueueStore(redisClient), func() {}, nil
	case "amqp":
		queue, err := store.NewAMQPQueueStore(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		return queue, func() { queue.Close() }, nil
	default:
		return store.NewMemoryQueueStore(cfg.QueueMaxSize), func() {}, nil
	}
}

func buildSummaryStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, logger *slog.Logger) (store.SummaryStore, func(), error) {
	switch cfg.SummaryBackend {
	case "redis":
		return store.NewRedisSummaryStore(redisClient), func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		summary := store.NewPostgresSummaryStore(pool)
		if err := summary.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("postgres summary schema ready")
		return summary, pool.Close, nil
	default:
		return store.NewMemorySummaryStore(), func() {}, nil
	}
}
