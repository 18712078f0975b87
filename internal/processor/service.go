package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/quality"
	"contentpipeline/internal/storage"
)

// collectionBlob is the shape the collector writes collection blobs in;
// kept local since only this stage reads them back.
type collectionBlob struct {
	Items []domain.StandardItem `json:"items"`
}

// Decision is why a message was not processed to completion, so the caller
// (the queue consumer loop) knows whether to ack, leave for redelivery, or
// dead-letter.
type Decision string

const (
	DecisionProcessed   Decision = "processed"
	DecisionAbandoned   Decision = "abandoned"    // lease held elsewhere or budget exceeded; leave for redelivery / drop
	DecisionRetryable   Decision = "retryable"     // transient failure; leave message for redelivery
	DecisionDeadLettered Decision = "dead_lettered" // malformed message; never retry
)

// Result reports what happened to one topic message. The stat fields are
// only populated on DecisionProcessed; a session tracker uses them directly
// instead of re-deriving them from the persisted attempt row.
type Result struct {
	Decision       Decision
	TopicID        string
	ArtifactKey    string
	Err            error
	TokensUsed     int
	CostUSD        float64
	DurationSeconds float64
	WordCount      int
	QualityScore   *float64
}

// Service orchestrates the full §4.F pipeline: lease, budget, generation,
// cost accounting, SEO derivation, artifact write, markdown fan-out, and
// attempt recording.
type Service struct {
	Store       storage.Store
	Queue       queue.Queue
	Lease       *Lease
	Budget      *Budget
	Generator   Generator
	LeaseStore  *LeaseStore
	Pricing     map[string]ModelPricing
	Model       string
	ProcessorID string
	ServiceName string
	Logger      *slog.Logger
}

// ProcessMessage runs one topic message through the full pipeline. It has no
// error return: every outcome (processed, abandon, retry, dead-letter) is
// reported via Result.Decision, with the cause in Result.Err; a payload that
// cannot be decoded is reported as DecisionDeadLettered.
func (s *Service) ProcessMessage(ctx context.Context, env domain.Envelope) Result {
	msg, err := decodeTopicMessage(env.Payload)
	if err != nil {
		s.Logger.Error("processor: malformed topic message, dead-lettering",
			slog.String("error", err.Error()), slog.String("correlation_id", env.CorrelationID))
		return Result{Decision: DecisionDeadLettered, Err: err}
	}

	if err := s.Lease.Claim(ctx, msg.TopicID, s.ProcessorID); err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			return Result{Decision: DecisionAbandoned, TopicID: msg.TopicID, Err: err}
		}
		return Result{Decision: DecisionRetryable, TopicID: msg.TopicID, Err: err}
	}

	result, decision := s.process(ctx, msg)
	switch decision {
	case DecisionProcessed:
		if err := s.Lease.Release(ctx, msg.TopicID, s.ProcessorID, true); err != nil {
			s.Logger.Warn("processor: release lease after success failed", slog.String("error", err.Error()))
		}
	case DecisionAbandoned:
		if err := s.Lease.Release(ctx, msg.TopicID, s.ProcessorID, false); err != nil {
			s.Logger.Warn("processor: release lease after abandon failed", slog.String("error", err.Error()))
		}
	case DecisionRetryable:
		// Leave the lease in place; it expires on its own TTL and the
		// message's own redelivery will reclaim it.
	}
	result.TopicID = msg.TopicID
	result.Decision = decision
	return result
}

func (s *Service) process(ctx context.Context, msg domain.TopicMessage) (Result, Decision) {
	if err := s.Budget.CheckBeforeCall(ctx, msg.TopicID); err != nil {
		s.Logger.Warn("processor: budget exceeded, abandoning", slog.String("error", err.Error()))
		return Result{Err: err}, DecisionAbandoned
	}

	item, err := s.resolveItem(ctx, msg)
	if err != nil {
		s.Logger.Error("processor: could not resolve source item, dead-lettering", slog.String("error", err.Error()))
		return Result{Err: err}, DecisionDeadLettered
	}

	started := time.Now().UTC()
	gen, err := s.Generator.Generate(ctx, item)
	if err != nil {
		attemptErr := s.recordAttempt(ctx, msg.TopicID, started, domain.AttemptFailed, 0, 0, nil, nil, err.Error())
		if attemptErr != nil {
			s.Logger.Warn("processor: record failed attempt failed", slog.String("error", attemptErr.Error()))
		}
		if errors.Is(err, domain.ErrTransientIO) || errors.Is(err, domain.ErrRateLimited) {
			return Result{Err: err}, DecisionRetryable
		}
		return Result{Err: err}, DecisionAbandoned
	}

	cost, err := CostOf(s.Pricing, s.Model, gen.InputTokens, gen.OutputTokens)
	if err != nil {
		return Result{Err: err}, DecisionDeadLettered
	}
	s.Budget.RecordSpend(cost.TotalCost)

	published := time.Now().UTC()
	seo, err := DeriveSEOMetadata(gen.Title, published)
	if err != nil {
		return Result{Err: err}, DecisionDeadLettered
	}

	scoreSource := domain.StandardItem{Title: seo.SEOTitle, Content: gen.Content, Source: item.Source}
	qualityScore, _ := quality.CalculateQualityScore(scoreSource)
	wordCount := len(strings.Fields(gen.Content))

	artifact := domain.ArticleArtifact{
		Title:         gen.Title,
		Slug:          seo.Slug,
		SEOTitle:      seo.SEOTitle,
		PublishedDate: published,
		Content:       gen.Content,
		SourceMetadata: domain.SourceMetadata{
			Source:    item.Source,
			SourceURL: item.URL,
			Author:    stringMeta(item.Metadata, domain.MetaAuthor),
			Subreddit: stringMeta(item.Metadata, domain.MetaSubreddit),
		},
		Cost:          cost.TotalCost,
		CostBreakdown: &cost,
		QualityScore:  qualityScore,
		WordCount:     wordCount,
	}

	artifactKey := ArtifactPath(published, seo.Slug, "json")
	body, err := json.Marshal(artifact)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: marshal artifact: %v", domain.ErrFatal, err)}, DecisionRetryable
	}
	if err := s.Store.Put(ctx, storage.ContainerProcessed, artifactKey, body); err != nil {
		return Result{Err: err}, DecisionRetryable
	}

	markdownEnv := domain.Envelope{
		Operation:     domain.OperationGenerateMarkdown,
		ServiceName:   s.ServiceName,
		Timestamp:     time.Now().UTC(),
		CorrelationID: msg.CollectionID + "_" + msg.TopicID,
		Payload: map[string]any{
			"topic_id":      msg.TopicID,
			"article_blob":  artifactKey,
			"slug":          seo.Slug,
		},
	}
	if err := s.Queue.Publish(ctx, queue.QueueMarkdownRequests, markdownEnv); err != nil {
		// Artifact write is idempotent by content address: the next
		// redelivery re-derives the same path and retries the enqueue.
		return Result{Err: err, ArtifactKey: artifactKey}, DecisionRetryable
	}

	if err := s.recordAttempt(ctx, msg.TopicID, started, domain.AttemptSucceeded, gen.InputTokens+gen.OutputTokens, cost.TotalCost, &qualityScore, &wordCount, ""); err != nil {
		s.Logger.Warn("processor: record succeeded attempt failed", slog.String("error", err.Error()))
	}

	return Result{
		ArtifactKey:     artifactKey,
		TokensUsed:      gen.InputTokens + gen.OutputTokens,
		CostUSD:         cost.TotalCost,
		DurationSeconds: time.Since(started).Seconds(),
		WordCount:       wordCount,
		QualityScore:    &qualityScore,
	}, DecisionProcessed
}

func (s *Service) recordAttempt(ctx context.Context, topicID string, started time.Time, status domain.AttemptStatus, tokens int, cost float64, qualityScore *float64, words *int, errMsg string) error {
	now := time.Now().UTC()
	return s.LeaseStore.RecordAttempt(ctx, topicID, domain.ProcessingAttempt{
		AttemptID:    uuid.New().String(),
		ProcessorID:  s.ProcessorID,
		StartedAt:    started,
		CompletedAt:  &now,
		Status:       status,
		TokensUsed:   tokens,
		CostUSD:      cost,
		QualityScore: qualityScore,
		WordCount:    words,
		Error:        errMsg,
	})
}

// resolveItem fetches the collection blob referenced by msg and finds the
// StandardItem this topic was built from, matched by id first and by
// content-hash prefix as a fallback for the deterministic topic_id case.
func (s *Service) resolveItem(ctx context.Context, msg domain.TopicMessage) (domain.StandardItem, error) {
	if msg.CollectionBlob == "" {
		return domain.StandardItem{}, fmt.Errorf("%w: topic message missing collection_blob", domain.ErrValidation)
	}

	body, err := s.Store.Get(ctx, storage.ContainerCollected, msg.CollectionBlob)
	if err != nil {
		return domain.StandardItem{}, fmt.Errorf("%w: read collection blob: %v", domain.ErrTransientIO, err)
	}

	var blob collectionBlob
	if err := json.Unmarshal(body, &blob); err != nil {
		return domain.StandardItem{}, fmt.Errorf("%w: decode collection blob: %v", domain.ErrUpstreamMalformed, err)
	}

	for _, item := range blob.Items {
		if item.ID != "" && item.ID == msg.TopicID {
			return item, nil
		}
	}
	for _, item := range blob.Items {
		hash := domain.HashContent(item.Title, item.Content)
		if len(hash) >= 12 && "topic_"+hash[:12] == msg.TopicID {
			return item, nil
		}
	}

	return domain.StandardItem{}, fmt.Errorf("%w: topic %s not found in collection blob %s", domain.ErrValidation, msg.TopicID, msg.CollectionBlob)
}

func stringMeta(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

// decodeTopicMessage round-trips env.Payload through JSON into a
// domain.TopicMessage and validates the fields §4.F.1 cannot proceed
// without.
func decodeTopicMessage(payload map[string]any) (domain.TopicMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.TopicMessage{}, fmt.Errorf("%w: re-marshal payload: %v", domain.ErrValidation, err)
	}

	var msg domain.TopicMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.TopicMessage{}, fmt.Errorf("%w: decode topic message: %v", domain.ErrValidation, err)
	}

	if msg.TopicID == "" {
		return domain.TopicMessage{}, fmt.Errorf("%w: topic message missing topic_id", domain.ErrValidation)
	}
	if msg.CollectionBlob == "" {
		return domain.TopicMessage{}, fmt.Errorf("%w: topic message missing collection_blob", domain.ErrValidation)
	}
	return msg, nil
}
