package domain

import "time"

// SourceMetadata is the subset of the originating StandardItem carried
// through into the published artifact for attribution and front-matter.
type SourceMetadata struct {
	Source    SourceKind `json:"source"`
	SourceURL string     `json:"source_url,omitempty"`
	Author    string     `json:"author,omitempty"`
	Subreddit string     `json:"subreddit,omitempty"`
}

// ArticleArtifact is the JSON artifact written by the topic processor (F) at
// articles/YYYY-MM-DD/{slug}.json.
type ArticleArtifact struct {
	Title          string         `json:"title"`
	Slug           string         `json:"slug"`
	SEOTitle       string         `json:"seo_title"`
	PublishedDate  time.Time      `json:"published_date"`
	Content        string         `json:"content"`
	SourceMetadata SourceMetadata `json:"source_metadata"`
	Cost           float64        `json:"cost"`
	CostBreakdown  *CostBreakdown `json:"cost_breakdown,omitempty"`
	QualityScore   float64        `json:"quality_score"`
	WordCount      int            `json:"word_count"`
	HeroImage      string         `json:"hero_image,omitempty"`
	ImageAlt       string         `json:"image_alt,omitempty"`
	ImageCredit    string         `json:"image_credit,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Category       string         `json:"category,omitempty"`
	// ArticleContent is an alternate body field some upstream producers use
	// instead of Content; the markdown renderer falls back to it.
	ArticleContent string `json:"article_content,omitempty"`
}

// CostBreakdown is the §12 supplement exposing input/output cost split
// instead of only the summed total.
type CostBreakdown struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
}

// MarkdownArtifact is the rendered .md counterpart of an ArticleArtifact,
// written by G at the same directory prefix with a .md extension.
type MarkdownArtifact struct {
	Path string
	Body string
}
