// Command markdown runs stage G: it renders each processed article into a
// markdown file and enqueues a publish job.
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
	"contentpipeline/internal/domain"
	"contentpipeline/internal/markdown"
	"contentpipeline/internal/observability/logging"
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

	svc := &markdown.Service{
		Store:       store,
		Queue:       q,
		Template:    config.String("MARKDOWN_TEMPLATE", markdown.TemplateDefault),
		ServiceName: "markdown",
		Logger:      logger,
	}

	health := worker.NewHealthServer(config.String("MARKDOWN_HEALTH_ADDR", ":8083"), logger)
	go func() {
		if err := health.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("markdown: health server failed", slog.Any("error", err))
		}
	}()

	stageCfg := worker.LoadStageConfig("MARKDOWN", queue.QueueMarkdownRequests, "markdown-1")
	if err := q.(*queue.RedisQueue).EnsureGroup(ctx, stageCfg.QueueName, stageCfg.ConsumerGroup); err != nil {
		logger.Error("markdown: failed to ensure consumer group", slog.Any("error", err))
		os.Exit(1)
	}

	runner := &worker.Runner{
		Queue:   q,
		Config:  stageCfg,
		Logger:  logger,
		Handler: func(ctx context.Context, env domain.Envelope) error { return svc.ProcessMessage(ctx, env) },
	}

	health.SetReady(true)
	logger.Info("markdown: ready", slog.String("queue", stageCfg.QueueName))
	runner.Run(ctx)
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
		logger.Error("markdown: failed to connect to object store", slog.Any("error", err))
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
