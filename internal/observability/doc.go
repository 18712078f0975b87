// Package observability provides structured logging and Prometheus metrics
// shared by every pipeline stage binary.
//
// Subpackages:
//   - logging: structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "contentpipeline/internal/observability/logging"
//	    "contentpipeline/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("pipeline started")
//	}
package observability
