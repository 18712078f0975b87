// Package domain defines the core value types shared by every stage of the
// content pipeline: standardized items, queue envelopes, topic state, and
// the published article artifacts.
package domain

import "errors"

// Sentinel errors classify every failure in the pipeline per the stage error
// taxonomy. Stages wrap these with fmt.Errorf("...: %w", ...) and match them
// back with errors.Is/errors.As.
var (
	// ErrValidation marks a structurally invalid item or message: missing
	// required fields, wrong types, a path-injection attempt. Non-retryable;
	// the caller dead-letters the message.
	ErrValidation = errors.New("validation error")

	// ErrTransientIO marks a retryable I/O failure: network timeout, 5xx,
	// object-store 503. The caller retries with backoff and preserves any
	// held lease.
	ErrTransientIO = errors.New("transient io error")

	// ErrRateLimited marks an HTTP 429 specifically, distinct from other
	// transient errors because it carries Retry-After semantics.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded marks a session or per-attempt cost cap breach. The
	// caller abandons the attempt without recommending a retry.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUpstreamMalformed marks a third-party response that parsed but was
	// structurally unexpected. The caller logs, skips the one item, and
	// continues the stream.
	ErrUpstreamMalformed = errors.New("upstream malformed response")

	// ErrFatal marks a failure that aborts the current job (not the
	// process): a site-build failure, a blob-validation failure at deploy
	// time. Triggers rollback where applicable.
	ErrFatal = errors.New("fatal job error")

	// ErrNotFound marks a missing lookup (lease row, blob, queue message).
	ErrNotFound = errors.New("not found")
)

// ValidationError carries the specific field and reason behind ErrValidation
// so callers can produce a stable, short rejection reason string for
// metrics, mirroring the quality gate's rejection-reason contract.
type ValidationError struct {
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
