// Package collector implements the collection streamer (§4.E): it drives
// every configured source adapter, applies the quality gate and three-layer
// dedup in strict write-before-enqueue order, and fans surviving items out
// onto the processing queue as topic messages.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"contentpipeline/internal/dedup"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/quality"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/storage"
)

// sourceFetchParallelism bounds how many source adapters run their fetch
// concurrently; each adapter internally rate-limits its own requests, so
// this only bounds the number of distinct sources in flight at once.
const sourceFetchParallelism = 4

// SourceFetcher is the common shape every per-source adapter satisfies
// (RedditAdapter.Fetch, MastodonAdapter.Fetch, RSSAdapter.Fetch,
// WebAdapter.Fetch), each already bound to its own config via a closure.
type SourceFetcher func(ctx context.Context) ([]domain.StandardItem, error)

// Config parameterizes one collection cycle.
type Config struct {
	CollectionID    string
	ServiceName     string
	StrictQuality   bool // gates the relevance filter, see quality.ReviewItem
	ScoreThreshold  float64
	MaxPerSource    int
	DedupOptions    dedup.Options
	PriorityScore   float64 // static priority for now; §4.F consumes it as-is
}

// DefaultConfig fills in the spec's defaults for an otherwise zero Config.
func DefaultConfig(collectionID, serviceName string) Config {
	return Config{
		CollectionID:   collectionID,
		ServiceName:    serviceName,
		StrictQuality:  true,
		ScoreThreshold: quality.DefaultQualityScoreThreshold,
		MaxPerSource:   quality.DefaultMaxPerSource,
		DedupOptions:   dedup.DefaultOptions(),
		PriorityScore:  0.5,
	}
}

// Streamer owns the object store and queue handles every cycle needs.
type Streamer struct {
	Store  storage.Store
	Queue  queue.Queue
	Logger *slog.Logger
}

// New constructs a Streamer.
func New(store storage.Store, q queue.Queue, logger *slog.Logger) *Streamer {
	return &Streamer{Store: store, Queue: q, Logger: logger}
}

// Run executes one full collection cycle: fetch every source concurrently,
// then apply the quality gate, rank, dedup, and enqueue sequentially so the
// collected/published/rejected invariant (§8) and write-before-enqueue
// ordering hold regardless of how many sources ran in parallel.
func (s *Streamer) Run(ctx context.Context, cfg Config, fetchers map[string]SourceFetcher) (*domain.CollectionStats, error) {
	stats := domain.NewCollectionStats()

	items, err := s.fetchAll(ctx, fetchers)
	if err != nil {
		return stats, err
	}
	stats.Collected = int64(len(items))

	accepted := make([]domain.StandardItem, 0, len(items))
	for _, item := range items {
		if ok, reason := quality.ReviewItem(item, cfg.StrictQuality); !ok {
			stats.RejectedQuality++
			s.Logger.Debug("collector: item rejected by quality gate",
				slog.String("reason", reason), slog.String("source", string(item.Source)))
			continue
		}
		accepted = append(accepted, item)
	}

	scored := quality.ScoreItems(accepted, cfg.ScoreThreshold)
	stats.RejectedQuality += int64(len(accepted) - len(scored))
	ranked := quality.RankItems(scored, cfg.MaxPerSource, len(scored))
	stats.RejectedQuality += int64(len(scored) - len(ranked))

	rankedItems := make([]domain.StandardItem, len(ranked))
	for i, r := range ranked {
		rankedItems[i] = r.Item
	}

	deduped := dedup.ApplyAll(ctx, s.Logger, s.Store, rankedItems, cfg.DedupOptions)
	stats.RejectedDedup = int64(len(rankedItems) - len(deduped))

	now := time.Now().UTC()
	collectionBlob := fmt.Sprintf("collections/%s/collection_%s.json",
		now.Format("2006/01/02"), now.Format("20060102T150405Z"))

	for _, item := range deduped {
		if err := s.appendToCollectionBlob(ctx, collectionBlob, item); err != nil {
			s.Logger.Warn("collector: failed to append to collection blob, skipping item",
				slog.String("error", err.Error()), slog.String("item_id", item.ID))
			continue
		}

		hash := dedup.Hash(item.Title, item.Content)
		env := BuildTopicMessage(item, hash, cfg.CollectionID, collectionBlob, cfg.ServiceName, cfg.PriorityScore, now)
		if err := s.Queue.Publish(ctx, queue.QueueProcessingRequests, env); err != nil {
			s.Logger.Warn("collector: failed to enqueue topic message, item already written",
				slog.String("error", err.Error()), slog.String("item_id", item.ID))
			continue
		}

		stats.RecordPublished(item.Source)
		if item.URL != "" {
			if err := dedup.AppendPublishedURL(ctx, s.Logger, s.Store, item.URL); err != nil {
				s.Logger.Warn("collector: failed to record published url", slog.String("error", err.Error()))
			}
		}
	}

	return stats, nil
}

// fetchAll runs every source fetcher concurrently, bounded by a semaphore,
// merging results in a fixed key order so the cycle's item ordering stays
// reproducible across runs even though fetches race.
func (s *Streamer) fetchAll(ctx context.Context, fetchers map[string]SourceFetcher) ([]domain.StandardItem, error) {
	names := make([]string, 0, len(fetchers))
	for name := range fetchers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([][]domain.StandardItem, len(names))
	sem := semaphore.NewWeighted(sourceFetchParallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, name := range names {
		i, name := i, name
		fetch := fetchers[name]
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			items, err := fetch(egCtx)
			if err != nil {
				s.Logger.Warn("collector: source failed, continuing without it",
					slog.String("source", name), slog.String("error", err.Error()))
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.StandardItem
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

func (s *Streamer) appendToCollectionBlob(ctx context.Context, blobKey string, item domain.StandardItem) error {
	existing := struct {
		Items []domain.StandardItem `json:"items"`
	}{}

	if body, err := s.Store.Get(ctx, storage.ContainerCollected, blobKey); err == nil {
		_ = json.Unmarshal(body, &existing)
	}
	existing.Items = append(existing.Items, item)

	out, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("%w: marshal collection blob: %v", domain.ErrTransientIO, err)
	}
	return s.Store.Put(ctx, storage.ContainerCollected, blobKey, out)
}
