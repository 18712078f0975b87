// Package metrics provides centralized Prometheus metrics for every stage of
// the content pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collection stage (E) metrics.
var (
	// CollectionCycleItems tracks per-cycle stats by outcome:
	// collected, published, rejected_quality, rejected_dedup.
	CollectionCycleItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_cycle_items_total",
			Help: "Items observed per collection cycle, by outcome",
		},
		[]string{"source", "outcome"},
	)

	// CollectionCycleDuration measures the wall-clock time of one cycle.
	CollectionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collection_cycle_duration_seconds",
			Help:    "Duration of one collection cycle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// DedupLayerFallbackOpenTotal counts fail-open events in L2/L3 dedup.
	DedupLayerFallbackOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_layer_fallback_open_total",
			Help: "Times a dedup layer failed open due to an I/O error",
		},
		[]string{"layer"},
	)
)

// Fetcher (A) metrics.
var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_requests_total",
			Help: "Outbound fetch requests by source and result",
		},
		[]string{"source", "result"},
	)

	FetchBackoffDelaySeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetch_backoff_delay_seconds",
			Help: "Current backoff delay per rate-limited source",
		},
		[]string{"source"},
	)
)

// Topic processor (F) metrics.
var (
	TopicAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_attempts_total",
			Help: "Topic processing attempts by status",
		},
		[]string{"status"},
	)

	TopicProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topic_processing_duration_seconds",
			Help:    "Time to fully process one topic",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	TopicCostUSD = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topic_cost_usd",
			Help:    "Per-topic LLM cost in USD",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	LeaseContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lease_contention_total",
			Help: "Times a topic message was abandoned due to an existing valid lease",
		},
	)

	QuotaExceededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_exceeded_total",
			Help: "Times processing was abandoned because a cost cap was hit",
		},
	)
)

// Markdown renderer (G) and site builder/publisher (H) metrics.
var (
	MarkdownRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markdown_renders_total",
			Help: "Markdown renders by template and result",
		},
		[]string{"template", "result"},
	)

	SiteBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "site_build_duration_seconds",
			Help:    "Duration of the static-site build step",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	SiteDeploysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_deploys_total",
			Help: "Site deploys by result (success, rollback, partial_error)",
		},
		[]string{"result"},
	)
)

// Orchestrator (J) metrics.
var (
	OrchestratorTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_triggers_total",
			Help: "Orchestrator triggers by kind (cron, blob_created) and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordOperationDuration is a small helper for ad-hoc timed operations that
// don't warrant a dedicated histogram.
func RecordOperationDuration(h prometheus.Histogram, duration time.Duration) {
	h.Observe(duration.Seconds())
}
