// Package quality implements the item-level quality gate (§4.C): per-item
// validation and readability/relevance filtering, followed by detector-driven
// scoring and ranking with a per-source diversity cap. Every function here is
// pure; the gate itself never touches a queue or the object store.
package quality

import (
	"strings"
	"unicode"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/utils/text"
)

// Rejection reasons, attached to the rejected-item log line.
const (
	ReasonTitleTooShort       = "title_too_short"
	ReasonContentTooShort     = "content_too_short"
	ReasonTitleNotReadable    = "title_not_readable"
	ReasonContentMostlyMarkup = "content_mostly_markup"
	ReasonNoTechKeywords      = "no_technical_keywords"
	ReasonOffTopicSource      = "off_topic_source"
)

const (
	minTitleChars    = 10
	minContentChars  = 100
	minAlnumRatio    = 0.5
	maxMarkupRatio   = 0.15
)

// techKeywords is checked case-insensitively against title+content.
var techKeywords = []string{
	"code", "software", "develop", "program", "tech", "data", "api",
	"database", "server", "security", "python", "javascript", "cloud",
	"algorithm", "network", "system", "app", "tool", "framework",
}

// offTopicSubreddits are rejected regardless of keyword match.
var offTopicSubreddits = map[string]struct{}{
	"funny": {}, "videos": {}, "nosleep": {}, "relationship_advice": {},
	"amitheasshole": {}, "tifu": {}, "showerthoughts": {},
}

// CheckReadability applies the basic, no-external-call readability filters:
// title/content length, title alphanumeric ratio, markup density.
func CheckReadability(item domain.StandardItem) (bool, string) {
	title := strings.TrimSpace(item.Title)
	content := strings.TrimSpace(item.Content)

	if text.CountRunes(title) < minTitleChars {
		return false, ReasonTitleTooShort
	}
	if text.CountRunes(content) < minContentChars {
		return false, ReasonContentTooShort
	}

	alnum := 0
	total := 0
	for _, r := range title {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			alnum++
		}
	}
	if total > 0 && float64(alnum) < float64(total)*minAlnumRatio {
		return false, ReasonTitleNotReadable
	}

	markup := strings.Count(content, "<") + strings.Count(content, "{")
	if float64(markup)/float64(max(len(content), 1)) > maxMarkupRatio {
		return false, ReasonContentMostlyMarkup
	}

	return true, ""
}

// CheckTechnicalRelevance rejects items with no technical-keyword hit, or
// whose subreddit metadata names a known off-topic community.
func CheckTechnicalRelevance(item domain.StandardItem) (bool, string) {
	combined := strings.ToLower(item.Title + " " + item.Content)

	hasKeyword := false
	for _, kw := range techKeywords {
		if strings.Contains(combined, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false, ReasonNoTechKeywords
	}

	if sub, ok := item.Metadata[domain.MetaSubreddit].(string); ok {
		if _, offTopic := offTopicSubreddits[strings.ToLower(sub)]; offTopic {
			return false, ReasonOffTopicSource
		}
	}

	return true, ""
}

// ReviewItem runs the full gate: readability, then (optionally) technical
// relevance. checkRelevance lets a caller disable the relevance filter for
// sources (e.g. a curated RSS feed) that are relevant by construction.
func ReviewItem(item domain.StandardItem, checkRelevance bool) (bool, string) {
	if ok, reason := CheckReadability(item); !ok {
		return false, reason
	}
	if checkRelevance {
		if ok, reason := CheckTechnicalRelevance(item); !ok {
			return false, reason
		}
	}
	return true, ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
