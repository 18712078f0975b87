package site

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/storage"
)

// DeploymentResult reports what a single Deploy call did, including any
// non-fatal errors accumulated along the way.
type DeploymentResult struct {
	FilesUploaded int
	Duration      time.Duration
	Errors        []error
	RolledBack    bool
}

// Publisher runs the backup→deploy half of §4.H against a build already
// produced by Builder.
type Publisher struct {
	Store  storage.Store
	Logger *slog.Logger
}

// Backup mirrors every blob of the live web container into the backup
// container. Failures are logged and returned but never block the deploy
// that follows: a missing backup just means no rollback target.
func (p *Publisher) Backup(ctx context.Context) error {
	objects, err := p.Store.List(ctx, storage.ContainerWeb, "")
	if err != nil {
		p.Logger.Warn("site: backup listing failed, continuing without backup", slog.String("error", err.Error()))
		return fmt.Errorf("%w: list web container: %v", domain.ErrTransientIO, err)
	}

	var failures int
	for _, obj := range objects {
		if err := p.Store.Copy(ctx, storage.ContainerWeb, obj.Key, storage.ContainerBackup, obj.Key); err != nil {
			failures++
			p.Logger.Warn("site: backup copy failed", slog.String("key", obj.Key), slog.String("error", err.Error()))
		}
	}
	if failures > 0 {
		return fmt.Errorf("%w: %d blob(s) failed to back up", domain.ErrTransientIO, failures)
	}
	return nil
}

// Deploy uploads every file under outputDir to the web container. If the
// very first upload fails and the output tree is non-empty, the deploy is
// treated as catastrophic and rolled back from the backup container;
// otherwise later failures are accumulated and reported without rollback.
func (p *Publisher) Deploy(ctx context.Context, outputDir string) (*DeploymentResult, error) {
	started := time.Now()
	result := &DeploymentResult{}

	var files []string
	err := filepath.Walk(outputDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk build output: %v", domain.ErrFatal, err)
	}

	for i, path := range files {
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("relativize %q: %w", path, err))
			continue
		}
		key := filepath.ToSlash(rel)

		body, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("read %q: %w", path, err))
			continue
		}

		if err := p.Store.Put(ctx, storage.ContainerWeb, key, body); err != nil {
			if i == 0 && len(files) > 0 {
				p.Logger.Error("site: first deploy upload failed, restoring from backup", slog.String("key", key), slog.String("error", err.Error()))
				restoreErr := p.restore(ctx)
				result.RolledBack = restoreErr == nil
				result.Duration = time.Since(started)
				if restoreErr != nil {
					return result, fmt.Errorf("%w: deploy failed and rollback failed: %v / %v", domain.ErrFatal, err, restoreErr)
				}
				return result, fmt.Errorf("%w: deploy failed on first file, rolled back: %v", domain.ErrFatal, err)
			}
			result.Errors = append(result.Errors, fmt.Errorf("upload %q: %w", key, err))
			continue
		}
		result.FilesUploaded++
	}

	result.Duration = time.Since(started)
	return result, nil
}

// restore copies every blob of the backup container back to the web
// container, undoing a catastrophic deploy.
func (p *Publisher) restore(ctx context.Context) error {
	objects, err := p.Store.List(ctx, storage.ContainerBackup, "")
	if err != nil {
		return fmt.Errorf("list backup container: %w", err)
	}
	for _, obj := range objects {
		if err := p.Store.Copy(ctx, storage.ContainerBackup, obj.Key, storage.ContainerWeb, obj.Key); err != nil {
			return fmt.Errorf("restore %q: %w", obj.Key, err)
		}
	}
	return nil
}
