package markdown

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/queue"
	"contentpipeline/internal/storage"
)

// markdownPath derives the §6 markdown-container path from the same
// published-date/slug pair the processor used for the JSON artifact, so the
// two paths share a directory prefix and differ only in extension.
func markdownPath(published time.Time, slug string) string {
	return fmt.Sprintf("articles/%s/%s.md", published.UTC().Format("2006-01-02"), slug)
}

// Service consumes F's markdown-generation messages, renders the referenced
// artifact, writes the .md file, and enqueues a publish job for G→H.
type Service struct {
	Store       storage.Store
	Queue       queue.Queue
	Template    string
	ServiceName string
	Logger      *slog.Logger
}

// ProcessMessage reads the article JSON referenced by env's payload, renders
// it with the configured template, writes the markdown artifact, and
// forwards a publish job.
func (s *Service) ProcessMessage(ctx context.Context, env domain.Envelope) error {
	articleBlob, _ := env.Payload["article_blob"].(string)
	if articleBlob == "" {
		return fmt.Errorf("%w: markdown message missing article_blob", domain.ErrValidation)
	}

	body, err := s.Store.Get(ctx, storage.ContainerProcessed, articleBlob)
	if err != nil {
		return fmt.Errorf("%w: read article blob: %v", domain.ErrTransientIO, err)
	}

	var artifact domain.ArticleArtifact
	if err := json.Unmarshal(body, &artifact); err != nil {
		return fmt.Errorf("%w: decode article blob: %v", domain.ErrUpstreamMalformed, err)
	}

	rendered, err := Render(artifact, s.Template)
	if err != nil {
		return fmt.Errorf("%w: render markdown: %v", domain.ErrFatal, err)
	}

	mdPath := markdownPath(artifact.PublishedDate, artifact.Slug)
	if err := s.Store.Put(ctx, storage.ContainerMarkdown, mdPath, []byte(rendered)); err != nil {
		return fmt.Errorf("%w: write markdown artifact: %v", domain.ErrTransientIO, err)
	}

	publishEnv := domain.Envelope{
		Operation:     domain.OperationMarkdownGenerated,
		ServiceName:   s.ServiceName,
		Timestamp:     time.Now().UTC(),
		CorrelationID: env.CorrelationID,
		Payload: map[string]any{
			"markdown_blob": mdPath,
			"article_blob":  articleBlob,
			"topic_id":      env.Payload["topic_id"],
		},
	}
	if err := s.Queue.Publish(ctx, queue.QueuePublishingRequests, publishEnv); err != nil {
		return fmt.Errorf("%w: enqueue publish job: %v", domain.ErrTransientIO, err)
	}

	s.Logger.Info("markdown: rendered and enqueued",
		slog.String("article_blob", articleBlob), slog.String("markdown_blob", mdPath))
	return nil
}
