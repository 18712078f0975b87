// Package dedup implements the three-layer deduplication strategy (§4.D):
// in-batch, same-day blob scan, and historical published-URL set. Layers 2
// and 3 fail open — a storage error is logged and the batch passes through
// unfiltered rather than blocking collection.
package dedup

import "contentpipeline/internal/domain"

// Hash returns the content-addressed dedup key for an item. It delegates to
// domain.HashContent so every layer and the markdown/processor stages agree
// on one definition of "the same content".
func Hash(title, content string) string {
	return domain.HashContent(title, content)
}
