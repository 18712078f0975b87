package processor

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseHeld is returned by Lease.Claim when another processor already
// holds a valid lease on the topic; §4.F.1 treats this as an abandon, not a
// retryable error, since the message will reappear on its own visibility
// timeout.
var ErrLeaseHeld = errors.New("topic lease held by another processor")

// DefaultLeaseTTL is how long a claimed lease is valid before it is eligible
// for reclaim by another processor.
const DefaultLeaseTTL = 10 * time.Minute

// Lease wraps the LeaseStore with the claim-then-verify step §4.F.1 needs:
// the store's upsert is a no-op (not an error) when a live lease is already
// held by someone else, so a caller must re-check ownership after claiming.
type Lease struct {
	store *LeaseStore
	ttl   time.Duration
}

// NewLease constructs a Lease with the default TTL.
func NewLease(store *LeaseStore) *Lease {
	return &Lease{store: store, ttl: DefaultLeaseTTL}
}

// Claim attempts to acquire topicID for processorID. Returns ErrLeaseHeld,
// not a plain bool, so callers compose it with errors.Is alongside the rest
// of the stage error taxonomy.
func (l *Lease) Claim(ctx context.Context, topicID, processorID string) error {
	if err := l.store.ClaimLease(ctx, topicID, processorID, l.ttl); err != nil {
		return err
	}

	heldByOther, err := l.store.HasValidLease(ctx, topicID, processorID)
	if err != nil {
		return err
	}
	if heldByOther {
		return ErrLeaseHeld
	}
	return nil
}

// Release clears the lease, recording success or failure on the topic.
func (l *Lease) Release(ctx context.Context, topicID, processorID string, success bool) error {
	return l.store.ReleaseLease(ctx, topicID, processorID, success)
}
