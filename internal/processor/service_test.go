package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/storage"
)

type fakeGenerator struct {
	result Generation
	err    error
}

func (f *fakeGenerator) Generate(context.Context, domain.StandardItem) (Generation, error) {
	return f.result, f.err
}

type fakeQueue struct {
	mu        sync.Mutex
	published []domain.Envelope
}

func (f *fakeQueue) Publish(_ context.Context, _ string, env domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, env)
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

func seedCollectionBlob(t *testing.T, store storage.Store, key string, items ...domain.StandardItem) {
	t.Helper()
	body, err := json.Marshal(collectionBlob{Items: items})
	if err != nil {
		t.Fatalf("marshal collection blob: %v", err)
	}
	if err := store.Put(context.Background(), storage.ContainerCollected, key, body); err != nil {
		t.Fatalf("seed collection blob: %v", err)
	}
}

func topicEnvelope(topicID, collectionBlob string) domain.Envelope {
	return domain.Envelope{
		Operation:     domain.OperationProcessTopic,
		CorrelationID: "cycle-1_" + topicID,
		Payload: map[string]any{
			"topic_id":        topicID,
			"title":           "A Technical Deep Dive",
			"source":          "rss",
			"collected_at":    time.Now().UTC().Format(time.RFC3339),
			"priority_score":  0.5,
			"collection_id":   "cycle-1",
			"collection_blob": collectionBlob,
		},
	}
}

func newTestService(t *testing.T, gen Generator) (*Service, *fakeQueue, storage.Store, sqlmock.Sqlmock) {
	t.Helper()
	store := storage.NewMemoryStore()
	q := &fakeQueue{}
	leaseStore, mock := testLeaseStore(t)

	svc := &Service{
		Store:       store,
		Queue:       q,
		Lease:       NewLease(leaseStore),
		Budget:      NewBudget(leaseStore, DefaultPerAttemptCapUSD, DefaultSessionCapUSD),
		Generator:   gen,
		LeaseStore:  leaseStore,
		Pricing:     DefaultPricing,
		Model:       "gpt-35-turbo",
		ProcessorID: "proc-a",
		ServiceName: "processor",
		Logger:      discardLogger(),
	}
	return svc, q, store, mock
}

func TestService_ProcessMessage_HappyPath(t *testing.T) {
	svc, q, store, mock := newTestService(t, &fakeGenerator{
		result: Generation{Content: "A Great Title\n\nBody text about distributed systems.", InputTokens: 100, OutputTokens: 200},
	})

	item := domain.StandardItem{ID: "topic-1", Title: "Raw Title", Content: "raw content", Source: domain.SourceRSS, URL: "https://example.com/a"}
	seedCollectionBlob(t, store, "collections/cycle-1.json", item)

	mock.ExpectExec("INSERT INTO topic_state").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT current_lease, lease_expires_at FROM topic_state").
		WillReturnRows(sqlmock.NewRows([]string{"current_lease", "lease_expires_at"}).AddRow("proc-a", time.Now().UTC().Add(time.Minute)))
	mock.ExpectQuery("SELECT cumulative_cost FROM topic_state").
		WillReturnRows(sqlmock.NewRows([]string{"cumulative_cost"}).AddRow(0.0))
	mock.ExpectExec("INSERT INTO processing_attempt").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE topic_state SET cumulative_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE topic_state SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	env := topicEnvelope("topic-1", "collections/cycle-1.json")
	result := svc.ProcessMessage(context.Background(), env)

	if result.Decision != DecisionProcessed {
		t.Fatalf("unexpected decision: %+v", result)
	}
	if len(q.published) != 1 {
		t.Fatalf("expected 1 markdown fan-out message, got %d", len(q.published))
	}
	if result.ArtifactKey == "" {
		t.Fatalf("expected an artifact key")
	}
	if _, err := store.Get(context.Background(), storage.ContainerProcessed, result.ArtifactKey); err != nil {
		t.Fatalf("expected artifact to be written: %v", err)
	}
}

func TestService_ProcessMessage_MalformedMessageIsDeadLettered(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeGenerator{})

	env := domain.Envelope{Payload: map[string]any{"title": "missing topic id"}}
	result := svc.ProcessMessage(context.Background(), env)

	if result.Decision != DecisionDeadLettered {
		t.Fatalf("expected dead-lettered, got %+v", result)
	}
}

func TestService_ProcessMessage_LeaseHeldIsAbandoned(t *testing.T) {
	svc, _, store, mock := newTestService(t, &fakeGenerator{})

	item := domain.StandardItem{ID: "topic-2", Title: "T", Content: "C", Source: domain.SourceRSS}
	seedCollectionBlob(t, store, "collections/cycle-1.json", item)

	mock.ExpectExec("INSERT INTO topic_state").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT current_lease, lease_expires_at FROM topic_state").
		WillReturnRows(sqlmock.NewRows([]string{"current_lease", "lease_expires_at"}).AddRow("proc-b", time.Now().UTC().Add(time.Minute)))

	env := topicEnvelope("topic-2", "collections/cycle-1.json")
	result := svc.ProcessMessage(context.Background(), env)

	if result.Decision != DecisionAbandoned {
		t.Fatalf("expected abandoned, got %+v", result)
	}
}

func TestService_ProcessMessage_TransientGeneratorErrorIsRetryable(t *testing.T) {
	svc, _, store, mock := newTestService(t, &fakeGenerator{err: domain.ErrTransientIO})

	item := domain.StandardItem{ID: "topic-3", Title: "T", Content: "C", Source: domain.SourceRSS}
	seedCollectionBlob(t, store, "collections/cycle-1.json", item)

	mock.ExpectExec("INSERT INTO topic_state").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT current_lease, lease_expires_at FROM topic_state").
		WillReturnRows(sqlmock.NewRows([]string{"current_lease", "lease_expires_at"}).AddRow("proc-a", time.Now().UTC().Add(time.Minute)))
	mock.ExpectQuery("SELECT cumulative_cost FROM topic_state").
		WillReturnRows(sqlmock.NewRows([]string{"cumulative_cost"}).AddRow(0.0))
	mock.ExpectExec("INSERT INTO processing_attempt").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE topic_state SET cumulative_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

	env := topicEnvelope("topic-3", "collections/cycle-1.json")
	result := svc.ProcessMessage(context.Background(), env)

	if result.Decision != DecisionRetryable {
		t.Fatalf("expected retryable, got %+v", result)
	}
	if !errors.Is(result.Err, domain.ErrTransientIO) {
		t.Fatalf("expected wrapped ErrTransientIO, got %v", result.Err)
	}
}
