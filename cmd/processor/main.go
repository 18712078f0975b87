// Command processor runs stage F: it claims a lease on each topic message,
// generates the article via the configured LLM provider, accounts for cost,
// and fans the artifact out to the markdown stage.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"contentpipeline/internal/config"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/observability/logging"
	"contentpipeline/internal/processor"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/session"
	"contentpipeline/internal/storage"
	"contentpipeline/internal/worker"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := initStore(ctx, logger)
	q := initQueue(logger)
	db := initLeaseStore(ctx, logger)
	defer db.Close()

	leaseStore := processor.NewLeaseStore(db, logger)
	processorID := config.String("PROCESSOR_ID", uuid.New().String()[:8])
	tracker := session.New(processorID)

	svc := &processor.Service{
		Store:       store,
		Queue:       q,
		Lease:       processor.NewLease(leaseStore),
		Budget:      processor.NewBudget(leaseStore, config.Float("PER_ATTEMPT_COST_CAP_USD", processor.DefaultPerAttemptCapUSD), config.Float("SESSION_COST_CAP_USD", processor.DefaultSessionCapUSD)),
		Generator:   buildGenerator(logger),
		LeaseStore:  leaseStore,
		Pricing:     processor.DefaultPricing,
		Model:       config.String("LLM_MODEL", "claude-3-5-sonnet-20241022"),
		ProcessorID: processorID,
		ServiceName: "processor",
		Logger:      logger,
	}

	health := worker.NewHealthServer(config.String("PROCESSOR_HEALTH_ADDR", ":8082"), logger)
	go func() {
		if err := health.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("processor: health server failed", slog.Any("error", err))
		}
	}()

	stageCfg := worker.LoadStageConfig("PROCESSOR", queue.QueueProcessingRequests, "processor-"+processorID)
	if err := q.(*queue.RedisQueue).EnsureGroup(ctx, stageCfg.QueueName, stageCfg.ConsumerGroup); err != nil {
		logger.Error("processor: failed to ensure consumer group", slog.Any("error", err))
		os.Exit(1)
	}

	runner := &worker.Runner{
		Queue:  q,
		Config: stageCfg,
		Logger: logger,
		Handler: func(ctx context.Context, env domain.Envelope) error {
			return handleTopic(ctx, svc, tracker, logger, env)
		},
	}

	health.SetReady(true)
	logger.Info("processor: ready", slog.String("queue", stageCfg.QueueName), slog.String("processor_id", processorID))
	runner.Run(ctx)

	stats := tracker.Stats()
	logger.Info("processor: session summary",
		slog.Int("topics_processed", stats.TopicsProcessed),
		slog.Int("topics_failed", stats.TopicsFailed),
		slog.Float64("total_cost_usd", stats.TotalCostUSD))
}

// handleTopic adapts processor.Service's four-way Result.Decision onto the
// Runner's ack/retry error contract and updates the session tracker either
// way, since a failed attempt still counts toward the session's stats.
func handleTopic(ctx context.Context, svc *processor.Service, tracker *session.Tracker, logger *slog.Logger, env domain.Envelope) error {
	result := svc.ProcessMessage(ctx, env)

	switch result.Decision {
	case processor.DecisionProcessed:
		tracker.RecordSuccess(result.TokensUsed, result.CostUSD, result.DurationSeconds, result.WordCount, result.QualityScore)
		return nil
	case processor.DecisionDeadLettered:
		errMsg := ""
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		tracker.RecordFailure(errMsg)
		logger.Error("processor: dead-lettering topic", slog.String("topic_id", result.TopicID), slog.String("error", errMsg))
		return domain.ErrValidation
	case processor.DecisionAbandoned:
		errMsg := ""
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		tracker.RecordFailure(errMsg)
		logger.Warn("processor: abandoning topic", slog.String("topic_id", result.TopicID), slog.String("error", errMsg))
		return domain.ErrValidation
	default: // DecisionRetryable
		errMsg := ""
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		tracker.RecordFailure(errMsg)
		return result.Err
	}
}

// buildGenerator wires Claude as primary and OpenAI as fallback, mirroring
// the donor summarizer's provider-switch shape but composed through
// FallbackGenerator instead of an either/or selection, so a transient
// Claude outage doesn't abandon the whole topic.
func buildGenerator(logger *slog.Logger) processor.Generator {
	claudeCfg := processor.LoadGenerationConfig("CLAUDE_MODEL", "claude-3-5-sonnet-20241022")
	claude := processor.NewClaudeGenerator(config.String("ANTHROPIC_API_KEY", ""), claudeCfg, logger)

	openaiKey := config.String("OPENAI_API_KEY", "")
	if openaiKey == "" {
		return claude
	}
	openaiCfg := processor.LoadGenerationConfig("OPENAI_MODEL", "gpt-4o")
	openai := processor.NewOpenAIGenerator(openaiKey, openaiCfg, logger)
	return &processor.FallbackGenerator{Primary: claude, Secondary: openai, Logger: logger}
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
		logger.Error("processor: failed to connect to object store", slog.Any("error", err))
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

func initLeaseStore(ctx context.Context, logger *slog.Logger) *sql.DB {
	db, err := processor.OpenLeaseStore(ctx, processor.DSNFromEnv(), processor.DefaultConnectionConfig())
	if err != nil {
		logger.Error("processor: failed to open lease store", slog.Any("error", err))
		os.Exit(1)
	}
	if err := processor.MigrateUp(db); err != nil {
		logger.Error("processor: failed to migrate lease store", slog.Any("error", err))
		os.Exit(1)
	}
	return db
}
