package domain

// CollectionStats accumulates one collection cycle's counters. Collected
// always equals Published+RejectedQuality+RejectedDedup.
type CollectionStats struct {
	Collected       int64
	Published       int64
	RejectedQuality int64
	RejectedDedup   int64

	// PublishedBySource is the §12 per-source breakdown of the published
	// count, keyed by SourceKind.
	PublishedBySource map[string]int64
}

func NewCollectionStats() *CollectionStats {
	return &CollectionStats{PublishedBySource: make(map[string]int64)}
}

func (s *CollectionStats) RecordPublished(source SourceKind) {
	s.Published++
	s.PublishedBySource[string(source)]++
}
