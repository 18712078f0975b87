package processor

import (
	"context"
	"fmt"
	"sync"

	"contentpipeline/internal/domain"
)

// DefaultPerAttemptCapUSD and DefaultSessionCapUSD are the §4.F.2 budget cap
// fallbacks used when a deployment doesn't override them via config.
const (
	DefaultPerAttemptCapUSD = 0.50
	DefaultSessionCapUSD    = 25.00
)

// Budget enforces the session and per-attempt cost caps §4.F.2 requires
// before a topic's LLM call is allowed to run. The session total is held in
// memory for the life of the process, mirroring the session tracker's
// append-only counter style.
type Budget struct {
	store           *LeaseStore
	perAttemptCap   float64
	sessionCap      float64
	mu              sync.Mutex
	sessionSpentUSD float64
}

// NewBudget constructs a Budget backed by store for the topic's cumulative
// cost and an in-memory running total for the session cap.
func NewBudget(store *LeaseStore, perAttemptCap, sessionCap float64) *Budget {
	return &Budget{store: store, perAttemptCap: perAttemptCap, sessionCap: sessionCap}
}

// CheckBeforeCall returns domain.ErrQuotaExceeded if the topic's cumulative
// cost already exceeds the per-attempt cap, or the session's running total
// exceeds the session cap. Both checks are pessimistic: they run before the
// LLM call they'd otherwise pay for.
func (b *Budget) CheckBeforeCall(ctx context.Context, topicID string) error {
	cumulative, err := b.store.CumulativeCost(ctx, topicID)
	if err != nil {
		return err
	}
	if cumulative >= b.perAttemptCap {
		return fmt.Errorf("%w: topic %s cumulative cost $%.6f exceeds per-attempt cap $%.2f",
			domain.ErrQuotaExceeded, topicID, cumulative, b.perAttemptCap)
	}

	b.mu.Lock()
	spent := b.sessionSpentUSD
	b.mu.Unlock()
	if spent >= b.sessionCap {
		return fmt.Errorf("%w: session cost $%.6f exceeds cap $%.2f", domain.ErrQuotaExceeded, spent, b.sessionCap)
	}
	return nil
}

// RecordSpend adds cost to the session's running total after a successful
// (or partially billed) LLM call.
func (b *Budget) RecordSpend(cost float64) {
	b.mu.Lock()
	b.sessionSpentUSD += cost
	b.mu.Unlock()
}

// SessionSpent reports the session's running total for metrics.
func (b *Budget) SessionSpent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionSpentUSD
}
