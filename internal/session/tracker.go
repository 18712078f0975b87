// Package session tracks per-processor counters across a run: topics
// processed/failed, articles generated, tokens, cost, and the derived
// metrics surfaced on every wake-up response and at shutdown.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker accumulates §4.I metrics for one processor instance. Every
// mutating method is append-only under a mutex; readers take a consistent
// snapshot via Stats.
type Tracker struct {
	ProcessorID string
	SessionID   string
	StartedAt   time.Time

	mu sync.Mutex

	topicsProcessed   int
	topicsFailed      int
	articlesGenerated int
	totalTokens       int
	totalCostUSD      float64
	totalSeconds      float64
	totalWordCount    int
	qualityScores     []float64
	failedErrors      []string
}

// New starts a tracker for processorID. An empty processorID is replaced
// with a short generated one, mirroring the donor's fallback-to-random-id
// behavior.
func New(processorID string) *Tracker {
	if processorID == "" {
		processorID = uuid.New().String()[:8]
	}
	return &Tracker{
		ProcessorID: processorID,
		SessionID:   uuid.New().String(),
		StartedAt:   time.Now().UTC(),
	}
}

// RecordSuccess records one successfully processed topic.
func (t *Tracker) RecordSuccess(tokens int, costUSD float64, seconds float64, wordCount int, qualityScore *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topicsProcessed++
	t.articlesGenerated++
	t.totalTokens += tokens
	t.totalCostUSD += costUSD
	t.totalSeconds += seconds
	t.totalWordCount += wordCount
	if qualityScore != nil {
		t.qualityScores = append(t.qualityScores, *qualityScore)
	}
}

// RecordFailure records one failed topic attempt, with an optional error
// message retained for later diagnosis.
func (t *Tracker) RecordFailure(errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topicsFailed++
	if errMsg != "" {
		t.failedErrors = append(t.failedErrors, errMsg)
	}
}

// Stats is the comprehensive, point-in-time snapshot returned by the
// tracker: counters plus every derived metric §4.I names.
type Stats struct {
	SessionID               string
	ProcessorID             string
	SessionStart            time.Time
	SessionDurationSeconds  float64
	TopicsProcessed         int
	TopicsFailed            int
	ArticlesGenerated       int
	TotalTokens             int
	TotalCostUSD            float64
	TotalWordCount          int
	AverageQualityScore     *float64
	SuccessRatePercent      float64
	AverageProcessingSeconds float64
	CostPerArticle          float64
	WordsPerArticle         float64
	RecentFailures          []string
}

func round(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}

// Stats computes the current snapshot. Division-by-zero cases (no articles
// yet, no attempts yet) report zero rather than erroring, matching the
// donor's guarded-ternary behavior.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := time.Since(t.StartedAt).Seconds()

	var avgQuality *float64
	if len(t.qualityScores) > 0 {
		sum := 0.0
		for _, q := range t.qualityScores {
			sum += q
		}
		v := round(sum/float64(len(t.qualityScores)), 3)
		avgQuality = &v
	}

	totalAttempts := t.topicsProcessed + t.topicsFailed
	successRate := 0.0
	if totalAttempts > 0 {
		successRate = round(float64(t.topicsProcessed)/float64(totalAttempts)*100, 1)
	}

	avgProcessing := 0.0
	if t.topicsProcessed > 0 {
		avgProcessing = round(t.totalSeconds/float64(t.topicsProcessed), 2)
	}

	costPerArticle := 0.0
	wordsPerArticle := 0.0
	if t.articlesGenerated > 0 {
		costPerArticle = round(t.totalCostUSD/float64(t.articlesGenerated), 6)
		wordsPerArticle = round(float64(t.totalWordCount)/float64(t.articlesGenerated), 0)
	}

	recent := t.failedErrors
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	recentCopy := make([]string, len(recent))
	copy(recentCopy, recent)

	return Stats{
		SessionID:                t.SessionID,
		ProcessorID:              t.ProcessorID,
		SessionStart:             t.StartedAt,
		SessionDurationSeconds:   round(duration, 2),
		TopicsProcessed:          t.topicsProcessed,
		TopicsFailed:             t.topicsFailed,
		ArticlesGenerated:        t.articlesGenerated,
		TotalTokens:              t.totalTokens,
		TotalCostUSD:             round(t.totalCostUSD, 6),
		TotalWordCount:           t.totalWordCount,
		AverageQualityScore:      avgQuality,
		SuccessRatePercent:       successRate,
		AverageProcessingSeconds: avgProcessing,
		CostPerArticle:           costPerArticle,
		WordsPerArticle:          wordsPerArticle,
		RecentFailures:           recentCopy,
	}
}
