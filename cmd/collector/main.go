// Command collector runs stage E: it consumes collection-request messages
// and drives every configured source adapter through one collection cycle.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"contentpipeline/internal/collector"
	"contentpipeline/internal/config"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/observability/logging"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/source"
	"contentpipeline/internal/storage"
	"contentpipeline/internal/worker"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := initStore(ctx, logger)
	q := initQueue(logger)

	httpClient := &http.Client{Timeout: 20 * time.Second}
	streamer := collector.New(store, q, logger)
	fetchers := buildFetchers(httpClient, logger)

	health := worker.NewHealthServer(config.String("COLLECTOR_HEALTH_ADDR", ":8081"), logger)
	go func() {
		if err := health.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("collector: health server failed", slog.Any("error", err))
		}
	}()

	stageCfg := worker.LoadStageConfig("COLLECTOR", queue.QueueCollectionRequests, "collector-1")
	if err := q.(*queue.RedisQueue).EnsureGroup(ctx, stageCfg.QueueName, stageCfg.ConsumerGroup); err != nil {
		logger.Error("collector: failed to ensure consumer group", slog.Any("error", err))
		os.Exit(1)
	}

	runner := &worker.Runner{
		Queue:  q,
		Config: stageCfg,
		Logger: logger,
		Handler: func(ctx context.Context, env domain.Envelope) error {
			return handleCollectionRequest(ctx, streamer, fetchers, logger, env)
		},
	}

	health.SetReady(true)
	logger.Info("collector: ready", slog.String("queue", stageCfg.QueueName))
	runner.Run(ctx)
}

func handleCollectionRequest(ctx context.Context, streamer *collector.Streamer, fetchers map[string]collector.SourceFetcher, logger *slog.Logger, env domain.Envelope) error {
	req, err := decodeCollectionRequest(env.Payload)
	if err != nil {
		return err
	}

	cfg := collector.DefaultConfig(req.CollectionID, "collector")
	selected := make(map[string]collector.SourceFetcher, len(req.Sources))
	for _, name := range req.Sources {
		if fn, ok := fetchers[name]; ok {
			selected[name] = fn
		}
	}
	if len(selected) == 0 {
		selected = fetchers
	}

	stats, err := streamer.Run(ctx, cfg, selected)
	if err != nil {
		logger.Error("collector: collection cycle failed", slog.String("collection_id", req.CollectionID), slog.Any("error", err))
		return err
	}
	logger.Info("collector: collection cycle complete",
		slog.String("collection_id", req.CollectionID),
		slog.Int64("collected", stats.Collected),
		slog.Int64("published", stats.Published),
		slog.Int64("rejected_quality", stats.RejectedQuality),
		slog.Int64("rejected_dedup", stats.RejectedDedup))
	return nil
}

func decodeCollectionRequest(payload map[string]any) (domain.CollectionRequest, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.CollectionRequest{}, err
	}
	var req domain.CollectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.CollectionRequest{}, err
	}
	if req.CollectionID == "" {
		req.CollectionID = "collection_" + time.Now().UTC().Format("20060102150405")
	}
	return req, nil
}

// buildFetchers wires every available source adapter, each closed over its
// own env-driven config, keyed by the name the orchestrator's default
// source list and any operator-supplied override use.
func buildFetchers(httpClient *http.Client, logger *slog.Logger) map[string]collector.SourceFetcher {
	reddit := source.NewRedditAdapter(httpClient, logger)
	mastodon := source.NewMastodonAdapter(httpClient, logger)
	rss := source.NewRSSAdapter(httpClient, logger)

	redditCfg := source.RedditConfig{
		Subreddits: config.StringList("REDDIT_SUBREDDITS", []string{"technology", "programming"}),
		Sort:       config.String("REDDIT_SORT", "hot"),
		TimeFilter: config.String("REDDIT_TIME_FILTER", "day"),
		MaxItems:   config.IntRange("REDDIT_MAX_ITEMS", 25, 1, 100),
		DenyNSFW:   config.Bool("REDDIT_DENY_NSFW", true),
	}
	mastodonCfg := source.MastodonConfig{
		Instances:      config.StringList("MASTODON_INSTANCES", []string{"mastodon.social"}),
		Timeline:       config.String("MASTODON_TIMELINE", "public"),
		MaxItems:       config.IntRange("MASTODON_MAX_ITEMS", 25, 1, 100),
		MinFavourites:  config.IntRange("MASTODON_MIN_FAVOURITES", 0, 0, 100000),
		ExcludeReplies: config.Bool("MASTODON_EXCLUDE_REPLIES", true),
		DenySensitive:  config.Bool("MASTODON_DENY_SENSITIVE", true),
	}
	rssCfg := source.RSSConfig{
		FeedURLs: config.StringList("RSS_FEED_URLS", nil),
		MaxItems: config.IntRange("RSS_MAX_ITEMS", 25, 1, 100),
	}

	return map[string]collector.SourceFetcher{
		string(domain.SourceReddit): func(ctx context.Context) ([]domain.StandardItem, error) {
			return reddit.Fetch(ctx, redditCfg)
		},
		string(domain.SourceMastodon): func(ctx context.Context) ([]domain.StandardItem, error) {
			return mastodon.Fetch(ctx, mastodonCfg)
		},
		string(domain.SourceRSS): func(ctx context.Context) ([]domain.StandardItem, error) {
			if len(rssCfg.FeedURLs) == 0 {
				return nil, nil
			}
			return rss.Fetch(ctx, rssCfg)
		},
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
		logger.Error("collector: failed to connect to object store", slog.Any("error", err))
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
