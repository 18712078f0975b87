package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/storage"
)

// PublishedURLsPath is where Layer 3's historical URL set lives.
const PublishedURLsPath = "metadata/published-urls.json"

// publishedURLs is the on-disk shape of the Layer 3 metadata file.
type publishedURLs struct {
	URLs []string `json:"urls"`
}

// FilterInBatch removes duplicates within a single collection cycle (Layer
// 1), keyed by content hash. Order-preserving.
func FilterInBatch(items []domain.StandardItem) []domain.StandardItem {
	seen := make(map[string]struct{}, len(items))
	result := make([]domain.StandardItem, 0, len(items))

	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		content := strings.TrimSpace(item.Content)
		if title == "" || content == "" {
			continue
		}
		hash := Hash(title, content)
		if hash == "" {
			continue
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		result = append(result, item)
	}
	return result
}

// FilterToday removes items matching an article already published today
// (Layer 2), scanning store's processed-content container under today's
// date prefix. Fails open: a storage error returns items unchanged.
func FilterToday(ctx context.Context, logger *slog.Logger, store storage.Store, items []domain.StandardItem, now time.Time) []domain.StandardItem {
	prefix := fmt.Sprintf("articles/%s/", now.UTC().Format("2006-01-02"))

	objects, err := store.List(ctx, storage.ContainerProcessed, prefix)
	if err != nil {
		logger.Warn("dedup layer 2: could not list today's articles, failing open", slog.String("error", err.Error()))
		return items
	}

	todayHashes := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		body, err := store.Get(ctx, storage.ContainerProcessed, obj.Key)
		if err != nil {
			logger.Debug("dedup layer 2: could not read article, skipping", slog.String("key", obj.Key), slog.String("error", err.Error()))
			continue
		}
		var article domain.ArticleArtifact
		if err := json.Unmarshal(body, &article); err != nil {
			logger.Debug("dedup layer 2: could not decode article, skipping", slog.String("key", obj.Key), slog.String("error", err.Error()))
			continue
		}
		if hash := Hash(article.Title, article.Content); hash != "" {
			todayHashes[hash] = struct{}{}
		}
	}

	result := make([]domain.StandardItem, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		content := strings.TrimSpace(item.Content)
		if title == "" || content == "" {
			result = append(result, item)
			continue
		}
		if _, published := todayHashes[Hash(title, content)]; published {
			continue
		}
		result = append(result, item)
	}
	return result
}

// FilterHistorical removes items whose source URL has been published at any
// point in the past (Layer 3), against the metadata/published-urls.json
// set. Fails open: a storage error (including the metadata file not yet
// existing) returns items unchanged.
func FilterHistorical(ctx context.Context, logger *slog.Logger, store storage.Store, items []domain.StandardItem) []domain.StandardItem {
	body, err := store.Get(ctx, storage.ContainerProcessed, PublishedURLsPath)
	if err != nil {
		logger.Debug("dedup layer 3: could not load published URLs metadata, failing open", slog.String("error", err.Error()))
		return items
	}

	var meta publishedURLs
	if err := json.Unmarshal(body, &meta); err != nil {
		logger.Warn("dedup layer 3: could not decode published URLs metadata, failing open", slog.String("error", err.Error()))
		return items
	}

	published := make(map[string]struct{}, len(meta.URLs))
	for _, u := range meta.URLs {
		published[u] = struct{}{}
	}

	result := make([]domain.StandardItem, 0, len(items))
	for _, item := range items {
		url := strings.TrimSpace(item.URL)
		if url == "" {
			result = append(result, item)
			continue
		}
		if _, seen := published[url]; seen {
			continue
		}
		result = append(result, item)
	}
	return result
}

// Options toggles Layer 2/3 on or off, for callers that want batch-only
// dedup (e.g. a dry run with no object store configured).
type Options struct {
	CheckToday      bool
	CheckHistorical bool
}

// DefaultOptions enables every layer, matching the spec's default pipeline.
func DefaultOptions() Options {
	return Options{CheckToday: true, CheckHistorical: true}
}

// ApplyAll runs Layer 1 unconditionally, then Layers 2/3 per opts, in order.
func ApplyAll(ctx context.Context, logger *slog.Logger, store storage.Store, items []domain.StandardItem, opts Options) []domain.StandardItem {
	result := FilterInBatch(items)

	if opts.CheckToday {
		result = FilterToday(ctx, logger, store, result, time.Now())
	}
	if opts.CheckHistorical {
		result = FilterHistorical(ctx, logger, store, result)
	}
	return result
}

// AppendPublishedURL records a freshly published item's URL into the Layer 3
// metadata set, so future cycles dedup against it. Fails open on read (a
// missing file means "empty set so far") but surfaces write errors, since a
// silent write failure would let Layer 3 go stale without anyone noticing.
func AppendPublishedURL(ctx context.Context, logger *slog.Logger, store storage.Store, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}

	var meta publishedURLs
	body, err := store.Get(ctx, storage.ContainerProcessed, PublishedURLsPath)
	if err != nil {
		logger.Debug("dedup layer 3: no existing published URLs metadata, starting fresh", slog.String("error", err.Error()))
	} else if err := json.Unmarshal(body, &meta); err != nil {
		logger.Warn("dedup layer 3: existing published URLs metadata corrupt, starting fresh", slog.String("error", err.Error()))
		meta = publishedURLs{}
	}

	for _, u := range meta.URLs {
		if u == url {
			return nil
		}
	}
	meta.URLs = append(meta.URLs, url)

	out, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal published urls metadata: %v", domain.ErrTransientIO, err)
	}
	if err := store.Put(ctx, storage.ContainerProcessed, PublishedURLsPath, out); err != nil {
		return fmt.Errorf("%w: write published urls metadata: %v", domain.ErrTransientIO, err)
	}
	return nil
}
