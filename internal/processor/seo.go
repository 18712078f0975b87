package processor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"contentpipeline/internal/domain"
)

var (
	slugQuotes    = regexp.MustCompile(`['` + "`" + `"\x{2018}\x{2019}]`)
	slugNonWord   = regexp.MustCompile(`[^a-z0-9\s-]+`)
	slugSeparator = regexp.MustCompile(`[-\s]+`)
)

const seoTitleMaxLength = 60

// Slug generates a URL-safe slug from title per §4.F.5: lowercase, strip
// apostrophes/quotes, replace every run of characters outside [a-z0-9] with
// a single hyphen, trim hyphens. Idempotent: Slug(Slug(s)) == Slug(s).
func Slug(title string) string {
	if title == "" {
		return ""
	}

	s := strings.ToLower(title)
	s = slugQuotes.ReplaceAllString(s, "")
	s = slugNonWord.ReplaceAllString(s, "-")
	s = slugSeparator.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SEOTitle truncates title to at most seoTitleMaxLength characters, ending
// with a single "…" character when truncated. Returns title unchanged when it
// already fits.
func SEOTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= seoTitleMaxLength {
		return title
	}
	truncated := strings.TrimRight(string(runes[:seoTitleMaxLength-1]), " \t\n")
	return truncated + "…"
}

// ArticleID returns the §4.F.5 article identifier: YYYYMMDD-slug.
func ArticleID(published time.Time, slug string) string {
	return published.UTC().Format("20060102") + "-" + slug
}

// ArticleURL returns the §4.F.5 URL path: /YYYY/MM/slug.
func ArticleURL(published time.Time, slug string) string {
	return fmt.Sprintf("/%04d/%02d/%s", published.UTC().Year(), published.UTC().Month(), slug)
}

// Filename returns the §4.F.5 filename: YYYYMMDD-slug.ext.
func Filename(published time.Time, slug, ext string) string {
	return published.UTC().Format("20060102") + "-" + slug + "." + ext
}

// SEOMetadata bundles every derived field §4.F.5 and §4.G need.
type SEOMetadata struct {
	Slug       string
	SEOTitle   string
	ArticleID  string
	URL        string
	JSONFile   string
	MDFile     string
}

// DeriveSEOMetadata combines Slug/SEOTitle/ArticleID/ArticleURL/Filename into
// the full set an artifact write needs. Returns domain.ErrValidation if title
// produces an empty slug.
func DeriveSEOMetadata(title string, published time.Time) (SEOMetadata, error) {
	slug := Slug(title)
	if slug == "" {
		return SEOMetadata{}, fmt.Errorf("%w: title %q produced an empty slug", domain.ErrValidation, title)
	}

	return SEOMetadata{
		Slug:      slug,
		SEOTitle:  SEOTitle(title),
		ArticleID: ArticleID(published, slug),
		URL:       ArticleURL(published, slug),
		JSONFile:  Filename(published, slug, "json"),
		MDFile:    Filename(published, slug, "md"),
	}, nil
}

// ArtifactPath returns the §6 processed-container path for the published
// instant and slug: articles/YYYY-MM-DD/{slug}.json (or any other extension).
func ArtifactPath(published time.Time, slug, ext string) string {
	return fmt.Sprintf("articles/%s/%s.%s", published.UTC().Format("2006-01-02"), slug, ext)
}
