package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/storage"
)

type fakeQueue struct {
	mu        sync.Mutex
	published []struct {
		queue string
		env   domain.Envelope
	}
}

func (f *fakeQueue) Publish(_ context.Context, q string, env domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, struct {
		queue string
		env   domain.Envelope
	}{q, env})
	return nil
}
func (f *fakeQueue) Consume(context.Context, string, string, string, int64, time.Duration) ([]queue.Message, error) {
	return nil, nil
}
func (f *fakeQueue) Ack(context.Context, string, string, ...string) error { return nil }
func (f *fakeQueue) Reclaim(context.Context, string, string, string, time.Duration, int64) ([]queue.Message, error) {
	return nil, nil
}

var _ queue.Queue = (*fakeQueue)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventHandler_Handle_CollectedBlobRepublishesPerItem(t *testing.T) {
	store := storage.NewMemoryStore()
	q := &fakeQueue{}
	h := &EventHandler{Store: store, Queue: q, Logger: discardLogger()}

	blob := collectionBlob{Items: []domain.StandardItem{
		{ID: "item-1", Title: "A", Content: "body", Source: domain.SourceRSS},
		{ID: "item-2", Title: "B", Content: "body2", Source: domain.SourceReddit},
	}}
	body, _ := json.Marshal(blob)
	key := "collections/2025/10/08/collection_1.json"
	if err := store.Put(context.Background(), storage.ContainerCollected, key, body); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := h.Handle(context.Background(), storage.ContainerCollected, key); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(q.published) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(q.published))
	}
	for _, p := range q.published {
		if p.queue != queue.QueueProcessingRequests {
			t.Fatalf("unexpected queue: %s", p.queue)
		}
		if p.env.Operation != domain.OperationProcessTopic {
			t.Fatalf("unexpected operation: %s", p.env.Operation)
		}
	}
}

func TestEventHandler_Handle_ProcessedBlobRepublishesMarkdownRequest(t *testing.T) {
	store := storage.NewMemoryStore()
	q := &fakeQueue{}
	h := &EventHandler{Store: store, Queue: q, Logger: discardLogger()}

	artifact := domain.ArticleArtifact{Title: "T", Slug: "t"}
	body, _ := json.Marshal(artifact)
	key := "articles/2025-10-08/t.json"
	if err := store.Put(context.Background(), storage.ContainerProcessed, key, body); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := h.Handle(context.Background(), storage.ContainerProcessed, key); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(q.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(q.published))
	}
	if q.published[0].queue != queue.QueueMarkdownRequests {
		t.Fatalf("unexpected queue: %s", q.published[0].queue)
	}
	if q.published[0].env.Operation != domain.OperationGenerateMarkdown {
		t.Fatalf("unexpected operation: %s", q.published[0].env.Operation)
	}
}

func TestEventHandler_Handle_IgnoresNonJSONAndUnknownContainers(t *testing.T) {
	store := storage.NewMemoryStore()
	q := &fakeQueue{}
	h := &EventHandler{Store: store, Queue: q, Logger: discardLogger()}

	if err := h.Handle(context.Background(), storage.ContainerCollected, "readme.txt"); err != nil {
		t.Fatalf("expected nil error for non-JSON: %v", err)
	}
	if err := h.Handle(context.Background(), storage.ContainerWeb, "index.html.json"); err != nil {
		t.Fatalf("expected nil error for unwatched container: %v", err)
	}
	if len(q.published) != 0 {
		t.Fatalf("expected no publishes, got %d", len(q.published))
	}
}

func TestWatcher_Run_OnlyHandlesBlobsCreatedAfterBaseline(t *testing.T) {
	store := storage.NewMemoryStore()
	q := &fakeQueue{}
	h := &EventHandler{Store: store, Queue: q, Logger: discardLogger()}

	artifact := domain.ArticleArtifact{Title: "Old", Slug: "old"}
	body, _ := json.Marshal(artifact)
	_ = store.Put(context.Background(), storage.ContainerProcessed, "articles/2025-10-07/old.json", body)

	w := &Watcher{Store: store, Handler: h, Interval: 10 * time.Millisecond, Logger: discardLogger()}
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	newArtifact := domain.ArticleArtifact{Title: "New", Slug: "new"}
	newBody, _ := json.Marshal(newArtifact)

	go func() {
		time.Sleep(15 * time.Millisecond)
		_ = store.Put(context.Background(), storage.ContainerProcessed, "articles/2025-10-08/new.json", newBody)
	}()

	w.Run(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.published) != 1 {
		t.Fatalf("expected exactly 1 publish for the post-baseline blob, got %d", len(q.published))
	}
}
