package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
)

// Handler processes one delivered envelope. A nil error acks the message;
// domain.ErrValidation also acks (the message is structurally unsalvageable
// and retrying it would loop forever); any other error leaves it pending so
// Reclaim redelivers it after the visibility window.
type Handler func(ctx context.Context, env domain.Envelope) error

// Runner drives the consume -> handle -> ack loop shared by every stage
// binary, plus a periodic reclaim pass that redelivers messages whose
// holder never acked within the visibility window.
type Runner struct {
	Queue   queue.Queue
	Config  StageConfig
	Handler Handler
	Logger  *slog.Logger
}

// Run blocks until ctx is canceled: one goroutine blocks on Consume for up
// to Config.PollInterval at a time (so ctx cancellation is never stuck
// behind an indefinite block), while the calling goroutine reclaims stale
// deliveries every Config.VisibilityWindow.
func (r *Runner) Run(ctx context.Context) {
	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		r.consumeLoop(ctx)
	}()

	reclaimTicker := time.NewTicker(r.Config.VisibilityWindow)
	defer reclaimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-consumeDone
			return
		case <-reclaimTicker.C:
			r.reclaim(ctx)
		}
	}
}

func (r *Runner) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		messages, err := r.Queue.Consume(ctx, r.Config.QueueName, r.Config.ConsumerGroup, r.Config.ConsumerName, r.Config.BatchSize, r.Config.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.Logger.Error("worker: consume failed", slog.String("queue", r.Config.QueueName), slog.Any("error", err))
			continue
		}
		for _, msg := range messages {
			r.handle(ctx, msg)
		}
	}
}

func (r *Runner) reclaim(ctx context.Context) {
	messages, err := r.Queue.Reclaim(ctx, r.Config.QueueName, r.Config.ConsumerGroup, r.Config.ConsumerName, r.Config.VisibilityWindow, r.Config.BatchSize)
	if err != nil {
		r.Logger.Error("worker: reclaim failed", slog.String("queue", r.Config.QueueName), slog.Any("error", err))
		return
	}
	for _, msg := range messages {
		r.handle(ctx, msg)
	}
}

func (r *Runner) handle(ctx context.Context, msg queue.Message) {
	err := r.Handler(ctx, msg.Envelope)
	if err == nil || errors.Is(err, domain.ErrValidation) {
		if ackErr := r.Queue.Ack(ctx, r.Config.QueueName, r.Config.ConsumerGroup, msg.ID); ackErr != nil {
			r.Logger.Error("worker: ack failed", slog.String("id", msg.ID), slog.Any("error", ackErr))
		}
		if err != nil {
			r.Logger.Error("worker: dropping unsalvageable message",
				slog.String("id", msg.ID), slog.Any("error", err))
		}
		return
	}
	r.Logger.Warn("worker: handler failed, leaving message for reclaim",
		slog.String("id", msg.ID), slog.Any("error", err))
}
