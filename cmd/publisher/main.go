// Command publisher runs stage H: it builds the static site from every
// rendered markdown file and deploys the output to the web container.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"contentpipeline/internal/config"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/observability/logging"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/site"
	"contentpipeline/internal/storage"
	"contentpipeline/internal/worker"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := initStore(ctx, logger)
	q := initQueue(logger)

	buildCfg := site.DefaultBuildConfig()
	buildCfg.Command = config.String("SITE_BUILD_COMMAND", buildCfg.Command)
	buildCfg.ConfigFile = config.String("SITE_CONFIG_FILE", buildCfg.ConfigFile)
	buildCfg.BaseURL = config.String("SITE_BASE_URL", buildCfg.BaseURL)
	buildCfg.BuildTimeout = config.DurationRange("SITE_BUILD_TIMEOUT", buildCfg.BuildTimeout, 10*time.Second, 600*time.Second)

	svc := &site.Service{
		Builder:   &site.Builder{Store: store, Config: buildCfg},
		Publisher: &site.Publisher{Store: store, Logger: logger},
		Logger:    logger,
	}

	health := worker.NewHealthServer(config.String("PUBLISHER_HEALTH_ADDR", ":8084"), logger)
	go func() {
		if err := health.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("publisher: health server failed", slog.Any("error", err))
		}
	}()

	stageCfg := worker.LoadStageConfig("PUBLISHER", queue.QueuePublishingRequests, "publisher-1")
	if err := q.(*queue.RedisQueue).EnsureGroup(ctx, stageCfg.QueueName, stageCfg.ConsumerGroup); err != nil {
		logger.Error("publisher: failed to ensure consumer group", slog.Any("error", err))
		os.Exit(1)
	}

	runner := &worker.Runner{
		Queue:  q,
		Config: stageCfg,
		Logger: logger,
		Handler: func(ctx context.Context, env domain.Envelope) error {
			_, err := svc.ProcessMessage(ctx, env)
			return err
		},
	}

	health.SetReady(true)
	logger.Info("publisher: ready", slog.String("queue", stageCfg.QueueName))
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
		logger.Error("publisher: failed to connect to object store", slog.Any("error", err))
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
