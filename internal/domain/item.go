package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SourceKind enumerates the standardized source tag carried by every item.
type SourceKind string

const (
	SourceReddit   SourceKind = "reddit"
	SourceMastodon SourceKind = "mastodon"
	SourceRSS      SourceKind = "rss"
	SourceWeb      SourceKind = "web"
)

// StandardItem is the normalized record produced by a source adapter and
// consumed by the quality gate, dedup layers, and collection streamer. It is
// immutable after standardization.
type StandardItem struct {
	ID          string
	Title       string
	Content     string
	Source      SourceKind
	URL         string
	CollectedAt time.Time
	Metadata    map[string]any
}

// Known metadata keys. Present for documentation and to avoid typos at call
// sites; the map itself stays open to unknown keys per the spec's
// dynamic-but-bounded metadata contract.
const (
	MetaSubreddit   = "subreddit"
	MetaScore       = "score"
	MetaUpvotes     = "upvotes"
	MetaNumComments = "num_comments"
	MetaBoosts      = "boosts"
	MetaFavourites  = "favourites"
	MetaAuthor      = "author"
	MetaSourceURL   = "source_url"
)

// maxHashContentChars is the number of leading content characters folded
// into the content hash, per the dedup contract.
const maxHashContentChars = 500

// HashContent computes the content-addressed dedup key:
// sha256(trim(title) + first_500_chars(trim(content))), hex-encoded. It
// always returns a 64-character lowercase hex digest: both arguments are
// typed as strings, so there is no non-string input to map to "".
func HashContent(title, content string) string {
	t := strings.TrimSpace(title)
	c := strings.TrimSpace(content)
	runes := []rune(c)
	if len(runes) > maxHashContentChars {
		c = string(runes[:maxHashContentChars])
	}
	sum := sha256.Sum256([]byte(t + c))
	return hex.EncodeToString(sum[:])
}
