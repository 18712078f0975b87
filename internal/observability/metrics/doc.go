// Package metrics provides Prometheus metrics registry and recording utilities
// for every pipeline stage.
//
// This package centralizes:
//   - Collection-cycle metrics (items by outcome, dedup fallback-open events)
//   - Fetcher metrics (requests by result, current backoff delay)
//   - Topic-processor metrics (attempts by status, cost, lease contention)
//   - Markdown/site metrics (renders, build duration, deploy results)
//   - Orchestrator metrics (triggers by kind and outcome)
//
// All metrics are automatically registered with the Prometheus default
// registry and exposed via each stage worker's /metrics endpoint.
package metrics
