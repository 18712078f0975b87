// Package markdown renders published ArticleArtifacts into the Markdown
// files the static site generator consumes: a YAML front-matter block
// followed by the article body.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"contentpipeline/internal/domain"
)

// cover is the optional front-matter block present only when the artifact
// carries a hero image.
type cover struct {
	Image   string `yaml:"image"`
	Alt     string `yaml:"alt,omitempty"`
	Caption string `yaml:"caption,omitempty"`
}

// frontMatter is the YAML dictionary every template's front-matter block
// serializes, per §4.G's required/optional field list.
type frontMatter struct {
	Title    string   `yaml:"title"`
	URL      string   `yaml:"url"`
	Source   string   `yaml:"source"`
	Author   string   `yaml:"author,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Category string   `yaml:"category,omitempty"`
	Cover    *cover   `yaml:"cover,omitempty"`
}

var (
	inlineURLPattern = regexp.MustCompile(`https?://\S+`)
	trailingEllipsis = regexp.MustCompile(`(\.\.\.|…)\s*$`)
)

// CleanTitle strips inline URLs and a trailing ellipsis from a title, per
// §4.G's title-cleaner contract applied to every title and URL before
// they're written into front-matter.
func CleanTitle(title string) string {
	cleaned := inlineURLPattern.ReplaceAllString(title, "")
	cleaned = trailingEllipsis.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// BuildFrontMatter renders the YAML front-matter block (including the
// leading/trailing "---" delimiters) for artifact at url.
func BuildFrontMatter(artifact domain.ArticleArtifact, url string) (string, error) {
	fm := frontMatter{
		Title:    CleanTitle(artifact.Title),
		URL:      CleanTitle(url),
		Source:   string(artifact.SourceMetadata.Source),
		Author:   artifact.SourceMetadata.Author,
		Tags:     artifact.Tags,
		Category: artifact.Category,
	}
	if artifact.HeroImage != "" {
		fm.Cover = &cover{Image: artifact.HeroImage, Alt: artifact.ImageAlt, Caption: artifact.ImageCredit}
	}

	body, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(body)
	b.WriteString("---\n")
	return b.String(), nil
}
