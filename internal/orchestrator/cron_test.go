package orchestrator

import (
	"context"
	"testing"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
)

func TestCronTrigger_RunWakeUp_EnqueuesCollectionRequest(t *testing.T) {
	q := &fakeQueue{}
	c := &CronTrigger{Queue: q, Config: DefaultCronConfig(), Logger: discardLogger()}

	c.runWakeUp(context.Background())

	if len(q.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(q.published))
	}
	if q.published[0].queue != queue.QueueCollectionRequests {
		t.Fatalf("unexpected queue: %s", q.published[0].queue)
	}
	if q.published[0].env.Operation != domain.OperationCollectSources {
		t.Fatalf("unexpected operation: %s", q.published[0].env.Operation)
	}
	sources, ok := q.published[0].env.Payload["sources"].([]string)
	if !ok || len(sources) != len(DefaultSources) {
		t.Fatalf("expected default sources in payload, got %v", q.published[0].env.Payload["sources"])
	}
}

func TestCronTrigger_RunWakeUp_UsesConfiguredSourcesOverDefault(t *testing.T) {
	q := &fakeQueue{}
	cfg := DefaultCronConfig()
	cfg.Sources = []string{"rss"}
	c := &CronTrigger{Queue: q, Config: cfg, Logger: discardLogger()}

	c.runWakeUp(context.Background())

	sources := q.published[0].env.Payload["sources"].([]string)
	if len(sources) != 1 || sources[0] != "rss" {
		t.Fatalf("expected overridden sources, got %v", sources)
	}
}
