package markdown

import (
	"strings"
	"testing"

	"contentpipeline/internal/domain"
)

func TestCleanTitle_StripsInlineURLAndEllipsis(t *testing.T) {
	got := CleanTitle("Check this out https://example.com/x a real game changer...")
	if strings.Contains(got, "http") {
		t.Fatalf("expected URL stripped: %q", got)
	}
	if strings.HasSuffix(got, "...") {
		t.Fatalf("expected trailing ellipsis stripped: %q", got)
	}
}

func TestCleanTitle_LeavesPlainTitleUnchanged(t *testing.T) {
	got := CleanTitle("A Perfectly Normal Title")
	if got != "A Perfectly Normal Title" {
		t.Fatalf("CleanTitle() = %q", got)
	}
}

func TestBuildFrontMatter_IncludesCoverBlockWhenHeroImagePresent(t *testing.T) {
	artifact := domain.ArticleArtifact{
		Title:       "Test",
		HeroImage:   "https://images.example.com/a.jpg",
		ImageAlt:    "a description",
		ImageCredit: "Photo by Someone",
	}
	fm, err := BuildFrontMatter(artifact, "/2025/10/test")
	if err != nil {
		t.Fatalf("BuildFrontMatter: %v", err)
	}
	if !strings.Contains(fm, "cover:") || !strings.Contains(fm, "images.example.com") {
		t.Fatalf("expected cover block: %s", fm)
	}
}

func TestBuildFrontMatter_OmitsCoverBlockWithoutHeroImage(t *testing.T) {
	artifact := domain.ArticleArtifact{Title: "Test"}
	fm, err := BuildFrontMatter(artifact, "/2025/10/test")
	if err != nil {
		t.Fatalf("BuildFrontMatter: %v", err)
	}
	if strings.Contains(fm, "cover:") {
		t.Fatalf("expected no cover block: %s", fm)
	}
}

func TestBuildFrontMatter_IsValidYAMLDelimitedBlock(t *testing.T) {
	artifact := domain.ArticleArtifact{Title: "Test", SourceMetadata: domain.SourceMetadata{Source: domain.SourceReddit}}
	fm, err := BuildFrontMatter(artifact, "/2025/10/test")
	if err != nil {
		t.Fatalf("BuildFrontMatter: %v", err)
	}
	lines := strings.Split(strings.TrimRight(fm, "\n"), "\n")
	if lines[0] != "---" || lines[len(lines)-1] != "---" {
		t.Fatalf("expected leading/trailing --- delimiters: %s", fm)
	}
}
