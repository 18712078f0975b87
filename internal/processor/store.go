package processor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/resilience/circuitbreaker"
	"contentpipeline/internal/resilience/retry"
)

// ConnectionConfig holds the lease-store connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default lease-store pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// OpenLeaseStore opens the Postgres connection used for TopicState,
// ProcessingAttempt, and the cost ledger, via pgx's database/sql driver.
func OpenLeaseStore(ctx context.Context, dsn string, cfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open lease store: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping lease store: %w", err)
	}

	return db, nil
}

// DSNFromEnv reads LEASE_STORE_DSN, falling back to DATABASE_URL for parity
// with single-database deployments.
func DSNFromEnv() string {
	if dsn := os.Getenv("LEASE_STORE_DSN"); dsn != "" {
		return dsn
	}
	return os.Getenv("DATABASE_URL")
}

// MigrateUp creates the topic_state and processing_attempt tables if absent.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS topic_state (
    topic_id           TEXT PRIMARY KEY,
    status             TEXT NOT NULL DEFAULT 'pending',
    current_lease      TEXT,
    lease_expires_at   TIMESTAMPTZ,
    cumulative_tokens  BIGINT NOT NULL DEFAULT 0,
    cumulative_cost    DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("migrate topic_state: %w", err)
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS processing_attempt (
    attempt_id     TEXT PRIMARY KEY,
    topic_id       TEXT NOT NULL REFERENCES topic_state(topic_id),
    processor_id   TEXT NOT NULL,
    started_at     TIMESTAMPTZ NOT NULL,
    completed_at   TIMESTAMPTZ,
    status         TEXT NOT NULL,
    tokens_used    BIGINT NOT NULL DEFAULT 0,
    cost_usd       DOUBLE PRECISION NOT NULL DEFAULT 0,
    quality_score  DOUBLE PRECISION,
    word_count     INTEGER,
    error          TEXT
)`); err != nil {
		return fmt.Errorf("migrate processing_attempt: %w", err)
	}

	if _, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_processing_attempt_topic_id ON processing_attempt(topic_id)`); err != nil {
		return fmt.Errorf("migrate indexes: %w", err)
	}

	return nil
}

// LeaseStore is the pgx-backed, circuit-breaker-protected persistence layer
// for topic leases, attempt history, and cumulative cost.
type LeaseStore struct {
	cb     *circuitbreaker.LeaseStoreCircuitBreaker
	logger *slog.Logger
}

// NewLeaseStore wraps db with circuit breaker protection.
func NewLeaseStore(db *sql.DB, logger *slog.Logger) *LeaseStore {
	return &LeaseStore{
		cb:     circuitbreaker.NewLeaseStoreCircuitBreaker(db),
		logger: logger,
	}
}

// ClaimLease atomically upserts the lease for topicID in favor of
// processorID, but the WHERE clause makes it a no-op (not an error) when a
// different processor already holds a valid one; callers that need to know
// whether the claim actually succeeded must follow up with HasValidLease
// (see Lease.Claim).
func (s *LeaseStore) ClaimLease(ctx context.Context, topicID, processorID string, ttl time.Duration) error {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	err := retry.WithBackoff(ctx, retry.LeaseStoreConfig(), func() error {
		_, err := s.cb.ExecContext(ctx, `
INSERT INTO topic_state (topic_id, status, current_lease, lease_expires_at, updated_at)
VALUES ($1, 'processing', $2, $3, $4)
ON CONFLICT (topic_id) DO UPDATE SET
    status = 'processing',
    current_lease = $2,
    lease_expires_at = $3,
    updated_at = $4
WHERE topic_state.current_lease IS NULL
   OR topic_state.lease_expires_at < $4
   OR topic_state.current_lease = $2`,
			topicID, processorID, expires, now)
		if err != nil {
			return fmt.Errorf("%w: claim lease: %v", domain.ErrTransientIO, err)
		}
		return nil
	})
	return err
}

// ReleaseLease clears the lease held by processorID on topicID, marking the
// topic completed or failed depending on success.
func (s *LeaseStore) ReleaseLease(ctx context.Context, topicID, processorID string, success bool) error {
	status := "failed"
	if success {
		status = "completed"
	}
	_, err := s.cb.ExecContext(ctx, `
UPDATE topic_state SET status = $1, current_lease = NULL, lease_expires_at = NULL, updated_at = $2
WHERE topic_id = $3 AND current_lease = $4`,
		status, time.Now().UTC(), topicID, processorID)
	if err != nil {
		return fmt.Errorf("%w: release lease: %v", domain.ErrTransientIO, err)
	}
	return nil
}

// HasValidLease reports whether topicID currently has an unexpired lease
// held by a processor other than processorID.
func (s *LeaseStore) HasValidLease(ctx context.Context, topicID, processorID string) (bool, error) {
	row := s.cb.QueryRowContext(ctx, `
SELECT current_lease, lease_expires_at FROM topic_state WHERE topic_id = $1`, topicID)

	var lease sql.NullString
	var expires sql.NullTime
	if err := row.Scan(&lease, &expires); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("%w: read lease: %v", domain.ErrTransientIO, err)
	}

	if !lease.Valid || !expires.Valid {
		return false, nil
	}
	held := lease.String != processorID && time.Now().UTC().Before(expires.Time)
	return held, nil
}

// RecordAttempt appends a ProcessingAttempt and rolls its cost/tokens into
// the topic's cumulative totals.
func (s *LeaseStore) RecordAttempt(ctx context.Context, topicID string, attempt domain.ProcessingAttempt) error {
	_, err := s.cb.ExecContext(ctx, `
INSERT INTO processing_attempt
    (attempt_id, topic_id, processor_id, started_at, completed_at, status, tokens_used, cost_usd, quality_score, word_count, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		attempt.AttemptID, topicID, attempt.ProcessorID, attempt.StartedAt, attempt.CompletedAt,
		attempt.Status, attempt.TokensUsed, attempt.CostUSD, attempt.QualityScore, attempt.WordCount, attempt.Error)
	if err != nil {
		return fmt.Errorf("%w: record attempt: %v", domain.ErrTransientIO, err)
	}

	_, err = s.cb.ExecContext(ctx, `
UPDATE topic_state SET cumulative_tokens = cumulative_tokens + $1, cumulative_cost = cumulative_cost + $2, updated_at = $3
WHERE topic_id = $4`,
		attempt.TokensUsed, attempt.CostUSD, time.Now().UTC(), topicID)
	if err != nil {
		return fmt.Errorf("%w: update totals: %v", domain.ErrTransientIO, err)
	}
	return nil
}

// CumulativeCost returns the running cost total for topicID.
func (s *LeaseStore) CumulativeCost(ctx context.Context, topicID string) (float64, error) {
	row := s.cb.QueryRowContext(ctx, `SELECT cumulative_cost FROM topic_state WHERE topic_id = $1`, topicID)
	var cost float64
	if err := row.Scan(&cost); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: read cumulative cost: %v", domain.ErrTransientIO, err)
	}
	return cost, nil
}
