package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ratelimit"
	"contentpipeline/internal/resilience/circuitbreaker"
	"contentpipeline/internal/resilience/retry"
)

// RSSConfig parameterizes RSSAdapter.Fetch.
type RSSConfig struct {
	FeedURLs []string
	MaxItems int
}

// RSSAdapter fetches and parses RSS/Atom feeds with gofeed, wrapped in the
// shared circuit breaker and retry policy.
type RSSAdapter struct {
	client   *http.Client
	bucket   *ratelimit.Bucket
	cb       *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	logger   *slog.Logger
}

// NewRSSAdapter constructs an RSSAdapter.
func NewRSSAdapter(client *http.Client, logger *slog.Logger) *RSSAdapter {
	return &RSSAdapter{
		client:   client,
		bucket:   ratelimit.New(120, time.Minute),
		cb:       circuitbreaker.New(circuitbreaker.SourceFetchConfig()),
		retryCfg: retry.SourceFetchConfig(),
		logger:   logger,
	}
}

// Fetch parses every configured feed URL, applying the quota tie-break
// across feeds. A single feed's parse failure is logged and skipped.
func (a *RSSAdapter) Fetch(ctx context.Context, cfg RSSConfig) ([]domain.StandardItem, error) {
	if len(cfg.FeedURLs) == 0 {
		return nil, nil
	}
	quotas := AllocateQuota(cfg.MaxItems, len(cfg.FeedURLs))

	var items []domain.StandardItem
	for i, feedURL := range cfg.FeedURLs {
		entries, err := a.fetchFeed(ctx, feedURL)
		if err != nil {
			a.logger.Warn("rss: failed to fetch feed, continuing",
				slog.String("feed_url", feedURL), slog.String("error", err.Error()))
			continue
		}

		limit := quotas[i]
		for j, entry := range entries {
			if j >= limit {
				break
			}
			items = append(items, entry)
		}
		if len(items) >= cfg.MaxItems {
			break
		}
	}
	if len(items) > cfg.MaxItems {
		items = items[:cfg.MaxItems]
	}
	return items, nil
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, feedURL string) ([]domain.StandardItem, error) {
	if err := a.bucket.Acquire(ctx); err != nil {
		return nil, err
	}

	var items []domain.StandardItem
	retryErr := retry.WithBackoff(ctx, a.retryCfg, func() error {
		result, err := a.cb.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				a.logger.Warn("rss: circuit breaker open", slog.String("feed_url", feedURL))
			}
			return err
		}
		items = result.([]domain.StandardItem)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	a.bucket.ResetBackoff()
	return items, nil
}

func (a *RSSAdapter) doFetch(ctx context.Context, feedURL string) (interface{}, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "contentpipeline-collector/1.0"
	fp.Client = a.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %v", domain.ErrTransientIO, err)
	}

	items := make([]domain.StandardItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		content := it.Content
		if content == "" {
			content = it.Description
		}

		id := it.GUID
		if id == "" {
			id = it.Link
		}

		items = append(items, StandardizeRSSItem(id, it.Title, content, it.Link, pubAt))
	}
	return items, nil
}
