// Package circuitbreaker provides circuit breaker implementations for database operations.
// This file implements a lease-store-specific wrapper that protects the topic-state/
// processing-attempt/cost-ledger Postgres connection from cascading failures. It is
// driven through database/sql via pgx's stdlib adapter, so the same sql.DB-shaped
// protection applies whether the underlying driver is pgx or anything else.
package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// LeaseStoreCircuitBreaker wraps the lease-store database connection with
// circuit breaker protection. It prevents cascading failures when Postgres
// becomes unavailable or slow, so topic leases fail fast instead of piling
// up behind a stalled connection pool.
type LeaseStoreCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// LeaseStoreConfig returns configuration optimized for the lease-store
// circuit breaker. Opens after 5 consecutive failures, 30 second timeout.
func LeaseStoreConfig() Config {
	return Config{
		Name:             "lease-store",
		MaxRequests:      3, // Allow 3 test requests in half-open state
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0, // Open on 100% failure (5+ consecutive failures)
		MinRequests:      5,   // Require 5 failures before tripping
	}
}

// NewLeaseStoreCircuitBreaker creates a new lease-store circuit breaker.
// It wraps the provided database connection with circuit breaker protection.
func NewLeaseStoreCircuitBreaker(db *sql.DB) *LeaseStoreCircuitBreaker {
	return &LeaseStoreCircuitBreaker{
		cb: New(LeaseStoreConfig()),
		db: db,
	}
}

// NewLeaseStoreCircuitBreakerWithConfig creates a new lease-store circuit
// breaker with custom configuration.
func NewLeaseStoreCircuitBreakerWithConfig(db *sql.DB, cfg Config) *LeaseStoreCircuitBreaker {
	return &LeaseStoreCircuitBreaker{
		cb: New(cfg),
		db: db,
	}
}

// QueryContext executes a query with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting the database.
func (lcb *LeaseStoreCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	result, err := lcb.cb.Execute(func() (interface{}, error) {
		return lcb.db.QueryContext(ctx, query, args...)
	})

	if err != nil {
		return nil, err
	}

	return result.(*sql.Rows), nil
}

// ExecContext executes a statement with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting the database.
func (lcb *LeaseStoreCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := lcb.cb.Execute(func() (interface{}, error) {
		return lcb.db.ExecContext(ctx, query, args...)
	})

	if err != nil {
		return nil, err
	}

	return result.(sql.Result), nil
}

// QueryRowContext executes a query that returns at most one row with circuit breaker protection.
// Note: sql.Row doesn't return an error immediately, so circuit breaker protection is limited.
// The error is only returned when scanning the row.
func (lcb *LeaseStoreCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	// Note: We can't use circuit breaker effectively here because QueryRow doesn't return error
	// The error is deferred until Scan() is called
	return lcb.db.QueryRowContext(ctx, query, args...)
}

// State returns the current state of the circuit breaker.
func (lcb *LeaseStoreCircuitBreaker) State() gobreaker.State {
	return lcb.cb.State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (lcb *LeaseStoreCircuitBreaker) IsOpen() bool {
	return lcb.cb.IsOpen()
}

// DB returns the underlying database connection.
// This should only be used for operations that don't need circuit breaker protection.
func (lcb *LeaseStoreCircuitBreaker) DB() *sql.DB {
	return lcb.db
}
