package quality

import (
	"sort"
	"strings"

	"contentpipeline/internal/domain"
)

// Penalty weights, applied on top of a perfect base score of 1.0.
const (
	paywallPenalty    = -0.40
	comparisonPenalty = -0.25
	listiclePenalty   = -0.20
)

// DefaultQualityScoreThreshold is the default cutoff below which an item is
// dropped before fan-out.
const DefaultQualityScoreThreshold = 0.5

// DefaultMaxPerSource caps how many items from a single source survive
// ranking, so one noisy feed can't dominate a batch.
const DefaultMaxPerSource = 3

// Scored pairs one item with its computed quality score and detection
// detail, for both filtering and operator-facing logging.
type Scored struct {
	Item      domain.StandardItem
	Score     float64
	Detection Detection
}

// CalculateQualityScore runs the detector suite and folds the results into
// a score in [0,1]: 1.0 minus fixed penalties for paywall/comparison/
// listicle, plus/minus the length-band adjustment.
func CalculateQualityScore(item domain.StandardItem) (float64, Detection) {
	title := strings.TrimSpace(item.Title)
	content := strings.TrimSpace(item.Content)
	if title == "" || content == "" {
		return 0.0, Detection{Detections: []string{DetectionInvalidInput}}
	}

	sourceURL, _ := item.Metadata[domain.MetaSourceURL].(string)
	if sourceURL == "" {
		sourceURL = item.URL
	}

	det := DetectContentQuality(title, content, sourceURL)

	score := 1.0
	if det.IsPaywalled {
		score += paywallPenalty
	}
	if det.IsComparison {
		score += comparisonPenalty
	}
	if det.IsListicle {
		score += listiclePenalty
	}
	score += det.ContentLengthScore

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, det
}

// ScoreItems scores every item, keeping only those at or above threshold.
func ScoreItems(items []domain.StandardItem, threshold float64) []Scored {
	var scored []Scored
	for _, item := range items {
		score, det := CalculateQualityScore(item)
		if score >= threshold {
			scored = append(scored, Scored{Item: item, Score: score, Detection: det})
		}
	}
	return scored
}

// RankItems sorts scored items by score descending and applies the
// per-source diversity cap, truncating to maxResults.
func RankItems(scored []Scored, maxPerSource, maxResults int) []Scored {
	if len(scored) == 0 {
		return nil
	}

	sorted := make([]Scored, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	sourceCounts := map[string]int{}
	var ranked []Scored
	for _, s := range sorted {
		source := string(s.Item.Source)
		if source == "" {
			source = "unknown"
		}
		if sourceCounts[source] >= maxPerSource {
			continue
		}
		sourceCounts[source]++
		ranked = append(ranked, s)
		if len(ranked) >= maxResults {
			break
		}
	}
	return ranked
}
