// Package source implements the per-source adapters (§4.B): producers of
// domain.StandardItem, each backed by a pure Standardize* function and an
// I/O-bearing fetch loop that logs and continues past a single failed target
// (subreddit, instance, feed or URL) rather than aborting collection. Each
// Fetch makes one request per target and returns all items as one slice;
// results are neither paginated nor produced lazily.
package source

import (
	"fmt"
	"time"

	"contentpipeline/internal/domain"
)

// AllocateQuota splits maxItems across numTargets as evenly as possible:
// base := max(1, maxItems/numTargets), with the remainder maxItems%numTargets
// assigned one-per-target to the first targets in input order.
func AllocateQuota(maxItems, numTargets int) []int {
	if numTargets <= 0 {
		return nil
	}
	base := maxItems / numTargets
	if base < 1 {
		base = 1
	}
	remainder := maxItems % numTargets

	quotas := make([]int, numTargets)
	for i := range quotas {
		quotas[i] = base
		if i < remainder {
			quotas[i]++
		}
	}
	return quotas
}

// linkFallbackContent is used when a source item has no body text of its
// own, so the readability length check downstream can still succeed for an
// item that is genuinely useful as a link.
func linkFallbackContent(url string) string {
	return fmt.Sprintf("Link: %s", url)
}

// StandardizeRedditPost converts one parsed Reddit post into a StandardItem.
func StandardizeRedditPost(p RedditPost, subreddit string) domain.StandardItem {
	content := p.Selftext
	if len(content) > 2000 {
		content = content[:2000]
	}
	if content == "" && p.URL != "" && !isRedditURL(p.URL) {
		content = linkFallbackContent(p.URL)
	}

	return domain.StandardItem{
		ID:          "reddit_" + p.ID,
		Title:       p.Title,
		Content:     content,
		Source:      domain.SourceReddit,
		URL:         "https://www.reddit.com" + p.Permalink,
		CollectedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
		Metadata: map[string]any{
			domain.MetaSubreddit:   subreddit,
			domain.MetaScore:       p.Score,
			domain.MetaUpvotes:     p.Score,
			domain.MetaNumComments: p.NumComments,
			domain.MetaAuthor:      p.Author,
		},
	}
}

func isRedditURL(url string) bool {
	return len(url) >= len("https://www.reddit.com/") && url[:len("https://www.reddit.com/")] == "https://www.reddit.com/"
}

// StandardizeMastodonStatus converts one parsed Mastodon status into a
// StandardItem. The status's HTML content is passed through as-is; the
// quality gate's markup-ratio check rejects anything too HTML-heavy.
func StandardizeMastodonStatus(s MastodonStatus, instance string) domain.StandardItem {
	content := s.Content
	if content == "" && s.URL != "" {
		content = linkFallbackContent(s.URL)
	}

	createdAt, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	title := s.SpoilerText
	if title == "" {
		title = firstWords(stripTags(s.Content), 12)
	}

	return domain.StandardItem{
		ID:          "mastodon_" + instance + "_" + s.ID,
		Title:       title,
		Content:     content,
		Source:      domain.SourceMastodon,
		URL:         s.URL,
		CollectedAt: createdAt.UTC(),
		Metadata: map[string]any{
			domain.MetaBoosts:     s.ReblogsCount,
			domain.MetaFavourites: s.FavouritesCount,
			domain.MetaAuthor:     s.Account.Acct,
		},
	}
}

// StandardizeRSSItem converts one parsed feed entry into a StandardItem.
func StandardizeRSSItem(id, title, content, link string, publishedAt time.Time) domain.StandardItem {
	if content == "" && link != "" {
		content = linkFallbackContent(link)
	}
	return domain.StandardItem{
		ID:          id,
		Title:       title,
		Content:     content,
		Source:      domain.SourceRSS,
		URL:         link,
		CollectedAt: publishedAt.UTC(),
		Metadata:    map[string]any{domain.MetaSourceURL: link},
	}
}

// StandardizeWebPage converts one scraped web page into a StandardItem.
func StandardizeWebPage(url, title, content string) domain.StandardItem {
	if content == "" {
		content = linkFallbackContent(url)
	}
	return domain.StandardItem{
		ID:          "web_" + domain.HashContent(title, url)[:16],
		Title:       title,
		Content:     content,
		Source:      domain.SourceWeb,
		URL:         url,
		CollectedAt: time.Now().UTC(),
		Metadata:    map[string]any{domain.MetaSourceURL: url},
	}
}

func firstWords(s string, n int) string {
	words := make([]rune, 0, len(s))
	count := 0
	for _, r := range s {
		if r == ' ' {
			count++
			if count >= n {
				break
			}
		}
		words = append(words, r)
	}
	return string(words)
}

func stripTags(s string) string {
	out := make([]rune, 0, len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out = append(out, r)
		}
	}
	return string(out)
}
