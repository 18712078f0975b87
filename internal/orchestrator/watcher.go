package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"contentpipeline/internal/storage"
)

// watchedContainers are the only containers a blob-created event can fire
// for; anything else is out of scope for J entirely.
var watchedContainers = []string{storage.ContainerCollected, storage.ContainerProcessed}

// Watcher polls the watched containers on an interval and calls Handler
// for every key it hasn't seen before. Nothing in the pack's dependency
// set wires native object-store event notifications, so a poll-and-diff
// loop is the chosen substitute for the blob-created trigger.
type Watcher struct {
	Store    storage.Store
	Handler  *EventHandler
	Interval time.Duration
	Logger   *slog.Logger

	seen map[string]map[string]struct{}
}

// DefaultWatchInterval is short enough to notice new blobs within one
// processing cycle without hammering the object store.
const DefaultWatchInterval = 15 * time.Second

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if w.seen == nil {
		w.seen = make(map[string]map[string]struct{})
		for _, c := range watchedContainers {
			w.seen[c] = make(map[string]struct{})
		}
	}

	w.baseline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// baseline records every blob that already exists when the watcher starts
// without handling it, since those blobs' writers already triggered their
// own downstream fan-out in-line. Only blobs that appear after this point
// count as new events.
func (w *Watcher) baseline(ctx context.Context) {
	for _, container := range watchedContainers {
		objects, err := w.Store.List(ctx, container, "")
		if err != nil {
			w.Logger.Warn("orchestrator: watch baseline failed", slog.String("container", container), slog.Any("error", err))
			continue
		}
		for _, obj := range objects {
			w.seen[container][obj.Key] = struct{}{}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	for _, container := range watchedContainers {
		objects, err := w.Store.List(ctx, container, "")
		if err != nil {
			w.Logger.Warn("orchestrator: watch list failed", slog.String("container", container), slog.Any("error", err))
			continue
		}
		for _, obj := range objects {
			if _, ok := w.seen[container][obj.Key]; ok {
				continue
			}
			w.seen[container][obj.Key] = struct{}{}
			if err := w.Handler.Handle(ctx, container, obj.Key); err != nil {
				w.Logger.Error("orchestrator: event handling failed",
					slog.String("container", container), slog.String("key", obj.Key), slog.Any("error", err))
			}
		}
	}
}
