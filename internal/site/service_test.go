package site

import (
	"context"
	"testing"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/storage"
)

func TestService_ProcessMessage_BuildsBacksUpAndDeploys(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put(context.Background(), storage.ContainerMarkdown, "articles/2025-10-08/a.md", []byte("---\ntitle: A\n---\nBody"))
	_ = store.Put(context.Background(), storage.ContainerWeb, "index.html", []byte("old-site"))

	svc := &Service{
		Builder: &Builder{
			Store: store,
			Config: BuildConfig{
				Command:      "sh",
				Args:         []string{"-c", "mkdir -p public && cp -r content/* public/ 2>/dev/null; echo '<html></html>' > public/index.html"},
				BuildTimeout: 5e9,
			},
		},
		Publisher: &Publisher{Store: store, Logger: discardLogger()},
		Logger:    discardLogger(),
	}

	result, err := svc.ProcessMessage(context.Background(), domain.Envelope{Operation: domain.OperationMarkdownGenerated})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.FilesUploaded == 0 {
		t.Fatalf("expected at least one file uploaded")
	}

	backedUp, err := store.Get(context.Background(), storage.ContainerBackup, "index.html")
	if err != nil || string(backedUp) != "old-site" {
		t.Fatalf("expected old site backed up, got %q err=%v", backedUp, err)
	}
}
