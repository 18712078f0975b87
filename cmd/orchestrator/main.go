// Command orchestrator runs stage J: it wakes up the pipeline on a cron
// schedule and republishes backfilled or operator-dropped blobs that never
// went through a live stage's inline fan-out.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"contentpipeline/internal/config"
	"contentpipeline/internal/observability/logging"
	"contentpipeline/internal/orchestrator"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/storage"
	"contentpipeline/internal/worker"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := initStore(ctx, logger)
	q := initQueue(logger)

	cronCfg := orchestrator.DefaultCronConfig()
	cronCfg.Schedule = config.String("ORCHESTRATOR_CRON_SCHEDULE", cronCfg.Schedule)
	cronCfg.Timezone = config.String("ORCHESTRATOR_TIMEZONE", cronCfg.Timezone)
	cronCfg.Sources = config.StringList("ORCHESTRATOR_SOURCES", cronCfg.Sources)

	cron := &orchestrator.CronTrigger{Queue: q, Config: cronCfg, Logger: logger}
	if err := cron.Start(ctx); err != nil {
		logger.Error("orchestrator: failed to start cron trigger", slog.Any("error", err))
		os.Exit(1)
	}
	defer cron.Stop()

	handler := &orchestrator.EventHandler{Store: store, Queue: q, Logger: logger}
	watcher := &orchestrator.Watcher{
		Store:    store,
		Handler:  handler,
		Interval: config.Duration("ORCHESTRATOR_WATCH_INTERVAL", orchestrator.DefaultWatchInterval),
		Logger:   logger,
	}
	go watcher.Run(ctx)

	health := worker.NewHealthServer(config.String("ORCHESTRATOR_HEALTH_ADDR", ":8085"), logger)
	health.SetReady(true)
	logger.Info("orchestrator: ready", slog.String("cron_schedule", cronCfg.Schedule))
	if err := health.Start(ctx); err != nil && err != http.ErrServerClosed {
		logger.Error("orchestrator: health server failed", slog.Any("error", err))
	}
}

func initLogger() *slog.Logger {
	if config.String("LOG_FORMAT", "json") == "text" {
		return logging.NewTextLogger()
	}
	return logging.NewLogger()
}

func initStore(ctx context.Context, logger *slog.Logger) storage.Store {
	store, err := storage.New(ctx, storage.Config{
		Endpoint:  config.String("OBJECT_STORE_ENDPOINT", "localhost:9000"),
		AccessKey: config.String("OBJECT_STORE_ACCESS_KEY", ""),
		SecretKey: config.String("OBJECT_STORE_SECRET_KEY", ""),
		UseSSL:    config.Bool("OBJECT_STORE_USE_SSL", false),
	})
	if err != nil {
		logger.Error("orchestrator: failed to connect to object store", slog.Any("error", err))
		os.Exit(1)
	}
	return store
}

func initQueue(logger *slog.Logger) queue.Queue {
	client := redis.NewClient(&redis.Options{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	return queue.New(client)
}
