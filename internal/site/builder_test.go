package site

import (
	"context"
	"errors"
	"os"
	"testing"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/storage"
)

func TestValidateBlobName_AcceptsPlainMarkdownPath(t *testing.T) {
	if err := ValidateBlobName("articles/2025-10-08/a-great-article.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateBlobName_RejectsTraversal(t *testing.T) {
	if err := ValidateBlobName("../../etc/passwd.md"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateBlobName_RejectsAbsolutePath(t *testing.T) {
	if err := ValidateBlobName("/etc/passwd.md"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateBlobName_RejectsWrongSuffix(t *testing.T) {
	if err := ValidateBlobName("articles/2025-10-08/a.sh"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateBlobName_RejectsShellMetacharacters(t *testing.T) {
	if err := ValidateBlobName("articles/$(rm -rf).md"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateBlobName_RejectsOverlong(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateBlobName(string(long) + ".md"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBuilder_Build_AbortsOnInvalidBlobName(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put(context.Background(), storage.ContainerMarkdown, "../escape.md", []byte("x"))

	b := &Builder{Store: store, Config: DefaultBuildConfig()}
	_, err := b.Build(context.Background())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBuilder_Build_RunsConfiguredCommandAndValidatesOutput(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put(context.Background(), storage.ContainerMarkdown, "articles/2025-10-08/a.md", []byte("---\ntitle: A\n---\nBody"))

	b := &Builder{
		Store: store,
		Config: BuildConfig{
			Command:      "sh",
			Args:         []string{"-c", "mkdir -p public && echo '<html></html>' > public/index.html"},
			BuildTimeout: 5e9,
		},
	}

	result, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer os.RemoveAll(result.WorkDir)

	if result.FileCount != 1 {
		t.Fatalf("expected 1 output file, got %d", result.FileCount)
	}
}

func TestBuilder_Build_FatalOnNonZeroExit(t *testing.T) {
	store := storage.NewMemoryStore()
	b := &Builder{
		Store: store,
		Config: BuildConfig{
			Command:      "sh",
			Args:         []string{"-c", "exit 1"},
			BuildTimeout: 5e9,
		},
	}

	_, err := b.Build(context.Background())
	if !errors.Is(err, domain.ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
}

func TestBuilder_Build_FatalWhenIndexMissing(t *testing.T) {
	store := storage.NewMemoryStore()
	b := &Builder{
		Store: store,
		Config: BuildConfig{
			Command:      "sh",
			Args:         []string{"-c", "mkdir -p public"},
			BuildTimeout: 5e9,
		},
	}

	_, err := b.Build(context.Background())
	if !errors.Is(err, domain.ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
}
