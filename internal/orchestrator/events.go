package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentpipeline/internal/collector"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/storage"
)

// collectionBlob mirrors the {"items": [...]} shape the collection
// streamer writes.
type collectionBlob struct {
	Items []domain.StandardItem `json:"items"`
}

// EventHandler reacts to a blob-created event on one of the known
// containers, re-deriving and publishing the queue message that stage's
// output is supposed to trigger. It also backs the operator-triggered
// replay script described in §6: pointed at an existing blob, it re-runs
// the same fan-out the original write would have caused.
type EventHandler struct {
	Store  storage.Store
	Queue  queue.Queue
	Logger *slog.Logger
}

// Handle classifies (container, key) and dispatches to the matching
// fan-out. Non-JSON keys and containers this stage doesn't watch are
// ignored with a log line rather than an error, matching §4.J.
func (h *EventHandler) Handle(ctx context.Context, container, key string) error {
	if !strings.HasSuffix(key, ".json") {
		h.Logger.Info("orchestrator: ignoring non-JSON blob event", slog.String("container", container), slog.String("key", key))
		return nil
	}

	switch container {
	case storage.ContainerCollected:
		return h.handleCollected(ctx, key)
	case storage.ContainerProcessed:
		return h.handleProcessed(ctx, key)
	default:
		h.Logger.Info("orchestrator: ignoring blob event outside known containers", slog.String("container", container), slog.String("key", key))
		return nil
	}
}

// handleCollected re-reads a collection blob and republishes a process_topic
// message for every item it contains, exactly as the collector's own
// fan-out would have on first write.
func (h *EventHandler) handleCollected(ctx context.Context, key string) error {
	body, err := h.Store.Get(ctx, storage.ContainerCollected, key)
	if err != nil {
		return fmt.Errorf("%w: read collection blob %q: %v", domain.ErrTransientIO, key, err)
	}

	var blob collectionBlob
	if err := json.Unmarshal(body, &blob); err != nil {
		return fmt.Errorf("%w: decode collection blob %q: %v", domain.ErrUpstreamMalformed, key, err)
	}

	collectionID := collectionIDFromKey(key)
	now := time.Now().UTC()
	for _, item := range blob.Items {
		contentHash := domain.HashContent(item.Title, item.Content)
		env := collector.BuildTopicMessage(item, contentHash, collectionID, key, "orchestrator", 0, now)
		if err := h.Queue.Publish(ctx, queue.QueueProcessingRequests, env); err != nil {
			return fmt.Errorf("%w: publish process_topic for %q: %v", domain.ErrTransientIO, item.ID, err)
		}
	}
	h.Logger.Info("orchestrator: replayed collection blob", slog.String("key", key), slog.Int("items", len(blob.Items)))
	return nil
}

// handleProcessed re-reads an article artifact and republishes the
// generate_markdown message for it, the same message F's processor
// publishes itself right after writing the artifact.
func (h *EventHandler) handleProcessed(ctx context.Context, key string) error {
	body, err := h.Store.Get(ctx, storage.ContainerProcessed, key)
	if err != nil {
		return fmt.Errorf("%w: read article blob %q: %v", domain.ErrTransientIO, key, err)
	}

	var artifact domain.ArticleArtifact
	if err := json.Unmarshal(body, &artifact); err != nil {
		return fmt.Errorf("%w: decode article blob %q: %v", domain.ErrUpstreamMalformed, key, err)
	}

	env := domain.Envelope{
		Operation:     domain.OperationGenerateMarkdown,
		ServiceName:   "orchestrator",
		Timestamp:     time.Now().UTC(),
		CorrelationID: key,
		Payload: map[string]any{
			"article_blob": key,
		},
	}
	if err := h.Queue.Publish(ctx, queue.QueueMarkdownRequests, env); err != nil {
		return fmt.Errorf("%w: publish generate_markdown for %q: %v", domain.ErrTransientIO, key, err)
	}
	h.Logger.Info("orchestrator: replayed article blob", slog.String("key", key))
	return nil
}

// collectionIDFromKey recovers the collection id a blob's own path
// encodes (collections/YYYY/MM/DD/collection_<ts>.json) by taking its file
// name without extension; good enough for correlation purposes on replay.
func collectionIDFromKey(key string) string {
	base := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		base = key[idx+1:]
	}
	return strings.TrimSuffix(base, ".json")
}
