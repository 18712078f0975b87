// Package orchestrator implements J: the cron trigger that wakes up
// collection on a schedule, and the blob-created trigger that chains each
// stage's output into the next stage's queue.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
)

// DefaultSources is the source set a bare cron wake-up enqueues when no
// operator override is configured.
var DefaultSources = []string{
	string(domain.SourceReddit),
	string(domain.SourceMastodon),
	string(domain.SourceRSS),
}

// CronConfig parameterizes the scheduler.
type CronConfig struct {
	Schedule string
	Timezone string
	Sources  []string
}

// DefaultCronConfig runs once every 6 hours in UTC against DefaultSources.
func DefaultCronConfig() CronConfig {
	return CronConfig{
		Schedule: "0 */6 * * *",
		Timezone: "UTC",
		Sources:  DefaultSources,
	}
}

// CronTrigger enqueues a collection-request on a fixed schedule.
type CronTrigger struct {
	Queue  queue.Queue
	Config CronConfig
	Logger *slog.Logger

	sched *cron.Cron
}

// Start loads the configured timezone (falling back to UTC on an invalid
// one), registers the job, and starts the scheduler. It returns
// immediately; the scheduler runs on its own goroutine until Stop is
// called.
func (c *CronTrigger) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(c.Config.Timezone)
	if err != nil {
		c.Logger.Error("orchestrator: invalid timezone, using UTC", slog.String("timezone", c.Config.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c.sched = cron.New(cron.WithLocation(loc))
	_, err = c.sched.AddFunc(c.Config.Schedule, func() {
		c.runWakeUp(ctx)
	})
	if err != nil {
		return err
	}
	c.sched.Start()
	c.Logger.Info("orchestrator: cron trigger started",
		slog.String("schedule", c.Config.Schedule), slog.String("timezone", c.Config.Timezone))
	return nil
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (c *CronTrigger) Stop() {
	if c.sched != nil {
		ctx := c.sched.Stop()
		<-ctx.Done()
	}
}

func (c *CronTrigger) runWakeUp(ctx context.Context) {
	sources := c.Config.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}

	collectionID := "collection_" + uuid.New().String()
	req := domain.CollectionRequest{CollectionID: collectionID, Sources: sources}

	env := domain.Envelope{
		Operation:     domain.OperationCollectSources,
		ServiceName:   "orchestrator",
		Timestamp:     time.Now().UTC(),
		CorrelationID: collectionID,
		Payload: map[string]any{
			"collection_id": req.CollectionID,
			"sources":       req.Sources,
		},
	}

	if err := c.Queue.Publish(ctx, queue.QueueCollectionRequests, env); err != nil {
		c.Logger.Error("orchestrator: failed to enqueue collection request", slog.Any("error", err))
		return
	}
	c.Logger.Info("orchestrator: enqueued collection request",
		slog.String("collection_id", collectionID), slog.Any("sources", sources))
}
