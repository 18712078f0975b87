// Package site implements H: assembling the markdown container's contents
// into a static site and deploying it to the web container, with a backup
// container as the rollback target.
package site

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/storage"
)

// maxBlobNameLength bounds every markdown blob name pulled into the build
// tree; anything longer is rejected outright rather than truncated.
const maxBlobNameLength = 256

// shellMetacharacters are rejected in blob names even though they never
// reach a shell here, because the same names are later used as file paths
// handed to the external build tool.
const shellMetacharacters = "&|;$`<>\\\"'\n\r"

// ValidateBlobName enforces the §4.H.1 download rules before a blob is
// written into the local build tree: no traversal, no absolute paths, a
// single fixed suffix, no shell metacharacters, and a length cap.
func ValidateBlobName(name string) error {
	if name == "" {
		return &domain.ValidationError{Field: "blob_name", Reason: "empty"}
	}
	if len(name) > maxBlobNameLength {
		return &domain.ValidationError{Field: "blob_name", Reason: fmt.Sprintf("exceeds %d characters", maxBlobNameLength)}
	}
	if !strings.HasSuffix(name, ".md") {
		return &domain.ValidationError{Field: "blob_name", Reason: "must have .md suffix"}
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return &domain.ValidationError{Field: "blob_name", Reason: "absolute paths not allowed"}
	}
	if strings.Contains(name, "..") {
		return &domain.ValidationError{Field: "blob_name", Reason: "path traversal not allowed"}
	}
	if strings.ContainsAny(name, shellMetacharacters) {
		return &domain.ValidationError{Field: "blob_name", Reason: "shell metacharacters not allowed"}
	}
	return nil
}

// BuildConfig configures the exec'd static-site generator.
type BuildConfig struct {
	Command       string
	Args          []string
	ConfigFile    string
	BaseURL       string
	BuildTimeout  time.Duration
	ContentSubdir string
}

// DefaultBuildConfig mirrors the donor config loader's env-var-with-fallback
// pattern; every field has a documented default so a bare deployment still
// builds.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Command:       "hugo",
		Args:          []string{"--minify"},
		ConfigFile:    "config.toml",
		BuildTimeout:  90 * time.Second,
		ContentSubdir: "content",
	}
}

// suspiciousExtensions are rejected anywhere in the built output tree.
var suspiciousExtensions = []string{".exe", ".sh", ".bat", ".cmd", ".ps1", ".dll", ".so"}

// Builder runs one download→organize→build→validate cycle against a fresh
// temp directory per invocation.
type Builder struct {
	Store  storage.Store
	Config BuildConfig
}

// BuildResult reports what a single Build call produced.
type BuildResult struct {
	WorkDir     string
	OutputDir   string
	FileCount   int
	Duration    time.Duration
	BuildStdout string
	BuildStderr string
}

// Build downloads every markdown blob, organizes it for the generator,
// execs the build, and validates the output. The caller is responsible for
// removing result.OutputDir once the deploy step has consumed it.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	started := time.Now()

	workDir, err := os.MkdirTemp("", "site-build-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", domain.ErrFatal, err)
	}

	if err := b.download(ctx, workDir); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	if err := b.runBuild(ctx, workDir); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	outputDir := filepath.Join(workDir, "public")
	fileCount, err := validateOutput(outputDir)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	return &BuildResult{
		WorkDir:   workDir,
		OutputDir: outputDir,
		FileCount: fileCount,
		Duration:  time.Since(started),
	}, nil
}

// download copies every markdown blob into content/<key> under workDir,
// validating each blob name first; a single invalid name aborts the whole
// job before anything is written.
func (b *Builder) download(ctx context.Context, workDir string) error {
	objects, err := b.Store.List(ctx, storage.ContainerMarkdown, "")
	if err != nil {
		return fmt.Errorf("%w: list markdown container: %v", domain.ErrTransientIO, err)
	}

	for _, obj := range objects {
		if err := ValidateBlobName(obj.Key); err != nil {
			return fmt.Errorf("%w: reject blob %q: %v", domain.ErrValidation, obj.Key, err)
		}
	}

	contentDir := filepath.Join(workDir, b.Config.ContentSubdir)
	for _, obj := range objects {
		body, err := b.Store.Get(ctx, storage.ContainerMarkdown, obj.Key)
		if err != nil {
			return fmt.Errorf("%w: fetch blob %q: %v", domain.ErrTransientIO, obj.Key, err)
		}
		dest := filepath.Join(contentDir, filepath.FromSlash(obj.Key))
		if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(contentDir)) {
			return fmt.Errorf("%w: blob %q escapes content dir", domain.ErrValidation, obj.Key)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("%w: create content subdir: %v", domain.ErrFatal, err)
		}
		if err := os.WriteFile(dest, body, 0o644); err != nil {
			return fmt.Errorf("%w: write content file: %v", domain.ErrFatal, err)
		}
	}
	return nil
}

// runBuild execs the configured static-site generator inside workDir with
// the configured timeout. A non-zero exit or timeout is Fatal: the job
// aborts, the process does not.
func (b *Builder) runBuild(ctx context.Context, workDir string) error {
	cfg := b.Config
	if cfg.Command == "" {
		cfg = DefaultBuildConfig()
	}

	buildCtx, cancel := context.WithTimeout(ctx, cfg.BuildTimeout)
	defer cancel()

	args := append([]string{}, cfg.Args...)
	if cfg.ConfigFile != "" {
		args = append(args, "--config", cfg.ConfigFile)
	}
	if cfg.BaseURL != "" {
		args = append(args, "--baseURL", cfg.BaseURL)
	}

	cmd := exec.CommandContext(buildCtx, cfg.Command, args...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if buildCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: site build exceeded %s: %s", domain.ErrFatal, cfg.BuildTimeout, stderr.String())
		}
		return fmt.Errorf("%w: site build failed: %v: %s", domain.ErrFatal, err, stderr.String())
	}
	return nil
}

// validateOutput enforces §4.H.4: index.html must exist, no suspicious
// extensions anywhere, and every entry resolves inside outputDir.
func validateOutput(outputDir string) (int, error) {
	info, err := os.Stat(filepath.Join(outputDir, "index.html"))
	if err != nil || info.IsDir() {
		return 0, fmt.Errorf("%w: build output missing index.html", domain.ErrFatal)
	}

	fileCount := 0
	err = filepath.Walk(outputDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		resolved, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		base, err := filepath.Abs(outputDir)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(resolved, base) {
			return fmt.Errorf("%w: build output entry %q escapes output dir", domain.ErrFatal, path)
		}
		if fi.IsDir() {
			return nil
		}
		fileCount++
		ext := strings.ToLower(filepath.Ext(path))
		for _, bad := range suspiciousExtensions {
			if ext == bad {
				return fmt.Errorf("%w: build output contains suspicious file %q", domain.ErrFatal, path)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fileCount, nil
}
