package processor

import (
	"strings"
	"testing"
	"time"
)

func TestSlug_LowercasesAndHyphenates(t *testing.T) {
	got := Slug("How AI is Transforming Development")
	want := "how-ai-is-transforming-development"
	if got != want {
		t.Fatalf("Slug() = %q, want %q", got, want)
	}
}

func TestSlug_StripsApostrophesAndPunctuation(t *testing.T) {
	got := Slug("What's New in AI?")
	want := "whats-new-in-ai"
	if got != want {
		t.Fatalf("Slug() = %q, want %q", got, want)
	}
}

func TestSlug_Idempotent(t *testing.T) {
	for _, title := range []string{"Hello, World!", "  -- weird --  ", "Already-a-slug"} {
		once := Slug(title)
		twice := Slug(once)
		if once != twice {
			t.Errorf("Slug not idempotent for %q: %q != %q", title, once, twice)
		}
		if strings.Trim(once, "-") != once && once != "" {
			t.Errorf("Slug %q has leading/trailing hyphen", once)
		}
	}
}

func TestSlug_EmptyTitleYieldsEmptySlug(t *testing.T) {
	if got := Slug(""); got != "" {
		t.Fatalf("Slug(\"\") = %q, want empty", got)
	}
}

func TestSEOTitle_ShortTitleUnchanged(t *testing.T) {
	if got := SEOTitle("Short Title"); got != "Short Title" {
		t.Fatalf("SEOTitle() = %q", got)
	}
}

func TestSEOTitle_TruncatesLongTitle(t *testing.T) {
	long := strings.Repeat("A", 100)
	got := SEOTitle(long)
	if len([]rune(got)) != seoTitleMaxLength {
		t.Fatalf("expected length %d, got %d (%q)", seoTitleMaxLength, len([]rune(got)), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestArticleID_FormatsDateAndSlug(t *testing.T) {
	dt := time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC)
	if got := ArticleID(dt, "test-article"); got != "20251008-test-article" {
		t.Fatalf("ArticleID() = %q", got)
	}
}

func TestArticleURL_FormatsYearMonthSlug(t *testing.T) {
	dt := time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC)
	if got := ArticleURL(dt, "test-article"); got != "/2025/10/test-article" {
		t.Fatalf("ArticleURL() = %q", got)
	}
}

func TestFilename_FormatsDateSlugExtension(t *testing.T) {
	dt := time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC)
	if got := Filename(dt, "python-312", "json"); got != "20251008-python-312.json" {
		t.Fatalf("Filename() = %q", got)
	}
}

func TestDeriveSEOMetadata_JSONAndMDShareDirectoryPrefix(t *testing.T) {
	dt := time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC)
	meta, err := DeriveSEOMetadata("Test Article", dt)
	if err != nil {
		t.Fatalf("DeriveSEOMetadata: %v", err)
	}
	jsonPath := ArtifactPath(dt, meta.Slug, "json")
	mdPath := ArtifactPath(dt, meta.Slug, "md")
	if strings.TrimSuffix(jsonPath, ".json") != strings.TrimSuffix(mdPath, ".md") {
		t.Fatalf("paths diverge beyond extension: %q vs %q", jsonPath, mdPath)
	}
}

func TestDeriveSEOMetadata_EmptySlugIsValidationError(t *testing.T) {
	dt := time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC)
	if _, err := DeriveSEOMetadata("!!!", dt); err == nil {
		t.Fatalf("expected error for title producing empty slug")
	}
}
