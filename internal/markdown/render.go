package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"contentpipeline/internal/domain"
)

// Template names §4.G recognizes.
const (
	TemplateDefault = "default"
	TemplateMinimal = "minimal"
	TemplateWithTOC = "with-toc"
)

var headingPattern = regexp.MustCompile(`(?m)^(#{2,3})\s+(.+)$`)

// Render is the pure function of (article, template name) -> markdown
// string §4.G specifies. It never touches the object store; callers own
// reading the artifact and writing the result.
func Render(artifact domain.ArticleArtifact, template string) (string, error) {
	if template == "" {
		template = TemplateDefault
	}
	if template != TemplateDefault && template != TemplateMinimal && template != TemplateWithTOC {
		return "", fmt.Errorf("markdown: unknown template %q", template)
	}

	url := articleURL(artifact)
	fmArtifact := artifact
	if template == TemplateMinimal {
		// minimal keeps only the required front-matter fields; optional
		// attribution/taxonomy/cover fields are dropped per §4.G's template
		// differentiation.
		fmArtifact.SourceMetadata.Author = ""
		fmArtifact.Tags = nil
		fmArtifact.Category = ""
		fmArtifact.HeroImage = ""
	}
	frontMatter, err := BuildFrontMatter(fmArtifact, url)
	if err != nil {
		return "", err
	}

	body := artifact.Content
	if body == "" {
		body = artifact.ArticleContent
	}
	if body == "" {
		return frontMatter, nil
	}

	var b strings.Builder
	b.WriteString(frontMatter)
	b.WriteString("\n")

	if template == TemplateWithTOC {
		if toc := buildTOC(body); toc != "" {
			b.WriteString(toc)
			b.WriteString("\n")
		}
	}

	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	return b.String(), nil
}

// articleURL reconstructs the published URL path from the artifact's slug
// and published date, matching the §4.F.5 derivation so front-matter's url
// field always agrees with the artifact's own path.
func articleURL(artifact domain.ArticleArtifact) string {
	return fmt.Sprintf("/%04d/%02d/%s", artifact.PublishedDate.Year(), artifact.PublishedDate.Month(), artifact.Slug)
}

// buildTOC scans the body for level-2/3 Markdown headings and emits a
// "Table of Contents" section linking to each via its GitHub-style anchor.
func buildTOC(body string) string {
	matches := headingPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Table of Contents\n\n")
	for _, m := range matches {
		title := strings.TrimSpace(m[2])
		b.WriteString(fmt.Sprintf("- [%s](#%s)\n", title, anchor(title)))
	}
	return b.String()
}

var anchorNonWord = regexp.MustCompile(`[^\w\s-]`)

func anchor(title string) string {
	a := strings.ToLower(title)
	a = anchorNonWord.ReplaceAllString(a, "")
	a = strings.ReplaceAll(strings.TrimSpace(a), " ", "-")
	return a
}
