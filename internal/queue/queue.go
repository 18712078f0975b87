// Package queue implements the at-least-once, lease-aware work queues that
// connect every pipeline stage: collection requests, processing requests,
// markdown-generation requests, and site-publishing requests.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"contentpipeline/internal/domain"
)

// Queue names, one per §6 queue.
const (
	QueueCollectionRequests = "content-collection-requests"
	QueueProcessingRequests = "content-processing-requests"
	QueueMarkdownRequests   = "markdown-generation-requests"
	QueuePublishingRequests = "site-publishing-requests"
)

const dataField = "data"

// Message is one delivered item: its stream id (needed to Ack/reclaim) and
// its decoded envelope.
type Message struct {
	ID       string
	Envelope domain.Envelope
}

// Queue is the narrow interface every stage depends on for cross-stage
// communication. A topic's lease lives entirely inside the consumer
// group's pending-entries list: XReadGroup delivers it, Ack retires it,
// Reclaim re-delivers anything past its visibility timeout.
type Queue interface {
	Publish(ctx context.Context, queue string, env domain.Envelope) error
	Consume(ctx context.Context, queue, group, consumer string, count int64, block time.Duration) ([]Message, error)
	Ack(ctx context.Context, queue, group string, ids ...string) error
	Reclaim(ctx context.Context, queue, group, consumer string, minIdle time.Duration, count int64) ([]Message, error)
}

// RedisQueue implements Queue over Redis Streams consumer groups.
type RedisQueue struct {
	client *redis.Client
}

// New wraps an already-configured redis client.
func New(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// EnsureGroup creates the consumer group for queue if it doesn't already
// exist, creating the stream itself (MKSTREAM) on first use.
func (q *RedisQueue) EnsureGroup(ctx context.Context, queue, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, queue, group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("%w: create consumer group %s/%s: %v", domain.ErrTransientIO, queue, group, err)
	}
	return nil
}

// Publish appends env to queue's stream.
func (q *RedisQueue) Publish(ctx context.Context, queue string, env domain.Envelope) error {
	body, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: queue,
		Values: map[string]any{dataField: body},
	}).Err(); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrTransientIO, queue, err)
	}
	return nil
}

// Consume reads up to count new messages for consumer within group,
// blocking up to block for at least one. A lease is implicit: the message
// stays in the group's pending-entries list until Ack or Reclaim.
func (q *RedisQueue) Consume(ctx context.Context, queue, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{queue, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: consume %s: %v", domain.ErrTransientIO, queue, err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			msg, err := decodeEntry(entry)
			if err != nil {
				// Malformed entry: not acked here; it is handed on with an empty
				// envelope so the caller's own validation can reject it and ack it.
				messages = append(messages, Message{ID: entry.ID})
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// Ack retires delivered messages from the consumer group's pending list.
func (q *RedisQueue) Ack(ctx context.Context, queue, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, queue, group, ids...).Err(); err != nil {
		return fmt.Errorf("%w: ack %s: %v", domain.ErrTransientIO, queue, err)
	}
	return nil
}

// Reclaim redelivers pending messages idle for at least minIdle to
// consumer, implementing the lease visibility timeout.
func (q *RedisQueue) Reclaim(ctx context.Context, queue, group, consumer string, minIdle time.Duration, count int64) ([]Message, error) {
	entries, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   queue,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reclaim %s: %v", domain.ErrTransientIO, queue, err)
	}

	var messages []Message
	for _, entry := range entries {
		msg, err := decodeEntry(entry)
		if err != nil {
			messages = append(messages, Message{ID: entry.ID})
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeEntry(entry redis.XMessage) (Message, error) {
	raw, ok := entry.Values[dataField]
	if !ok {
		return Message{}, fmt.Errorf("%w: entry %s missing data field", domain.ErrValidation, entry.ID)
	}
	s, ok := raw.(string)
	if !ok {
		return Message{}, fmt.Errorf("%w: entry %s data field not a string", domain.ErrValidation, entry.ID)
	}
	env, err := DecodeEnvelope([]byte(s))
	if err != nil {
		return Message{}, err
	}
	return Message{ID: entry.ID, Envelope: env}, nil
}

var _ Queue = (*RedisQueue)(nil)
