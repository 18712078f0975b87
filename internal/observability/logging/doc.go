// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the pipeline.
//
// Key features:
//   - JSON and text output formats
//   - Stage/correlation/topic tagging
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "contentpipeline/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("pipeline started", slog.String("version", "1.0"))
//	}
//
//	func runCycle(ctx context.Context) {
//	    logger := logging.WithStage(logging.FromContext(ctx), "collector")
//	    logger.Info("cycle started")
//	}
package logging
