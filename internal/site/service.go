package site

import (
	"context"
	"log/slog"
	"os"

	"contentpipeline/internal/domain"
)

// Service consumes G's site-publishing-requests messages and runs one
// build→backup→deploy cycle per message. force_rebuild is accepted but
// does not change behavior here: every message triggers a full rebuild
// from the current markdown container contents, since H has no incremental
// build mode.
type Service struct {
	Builder   *Builder
	Publisher *Publisher
	Logger    *slog.Logger
}

// ProcessMessage runs one publish cycle and returns the resulting
// DeploymentResult for the caller to log or report.
func (s *Service) ProcessMessage(ctx context.Context, env domain.Envelope) (*DeploymentResult, error) {
	build, err := s.Builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(build.WorkDir)

	if err := s.Publisher.Backup(ctx); err != nil {
		s.Logger.Warn("site: proceeding without a fresh backup", slog.String("error", err.Error()))
	}

	result, err := s.Publisher.Deploy(ctx, build.OutputDir)
	if err != nil {
		return result, err
	}

	s.Logger.Info("site: deployed",
		slog.Int("files_uploaded", result.FilesUploaded),
		slog.Duration("duration", result.Duration),
		slog.Int("non_fatal_errors", len(result.Errors)))
	return result, nil
}
