package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
)

func TestNewLeaseStoreCircuitBreaker(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	lcb := NewLeaseStoreCircuitBreaker(db)

	if lcb == nil {
		t.Fatal("expected non-nil LeaseStoreCircuitBreaker")
	}

	if lcb.db != db {
		t.Error("expected db to be set")
	}

	if lcb.cb == nil {
		t.Error("expected circuit breaker to be set")
	}

	if lcb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state to be Closed, got %s", lcb.State())
	}
}

func TestLeaseStoreCircuitBreaker_QueryContext_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	lcb := NewLeaseStoreCircuitBreaker(db)
	ctx := context.Background()

	// Setup mock expectation
	rows := sqlmock.NewRows([]string{"id", "topic_id"}).
		AddRow(1, "test-topic")
	mock.ExpectQuery("SELECT (.+) FROM topic_state").WillReturnRows(rows)

	// Execute query
	result, err := lcb.QueryContext(ctx, "SELECT id, topic_id FROM topic_state WHERE id = ?", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = result.Close() }()

	// Verify result
	if !result.Next() {
		t.Fatal("expected at least one row")
	}

	var id int
	var topicID string
	if err := result.Scan(&id, &topicID); err != nil {
		t.Fatalf("failed to scan row: %v", err)
	}

	if id != 1 || topicID != "test-topic" {
		t.Errorf("expected id=1, topic_id=test-topic, got id=%d, topic_id=%s", id, topicID)
	}

	// Verify circuit breaker state
	if lcb.State() != gobreaker.StateClosed {
		t.Errorf("expected state to remain Closed after success, got %s", lcb.State())
	}

	// Verify all expectations were met
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLeaseStoreCircuitBreaker_QueryContext_Failure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	lcb := NewLeaseStoreCircuitBreaker(db)
	ctx := context.Background()

	// Setup mock to return error
	expectedErr := errors.New("database connection failed")
	mock.ExpectQuery("SELECT (.+) FROM topic_state").WillReturnError(expectedErr)

	// Execute query
	_, err = lcb.QueryContext(ctx, "SELECT id, topic_id FROM topic_state")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// Verify circuit breaker recorded the failure
	if lcb.State() == gobreaker.StateOpen {
		t.Error("circuit should not be open after single failure")
	}
}

func TestLeaseStoreCircuitBreaker_ExecContext_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	lcb := NewLeaseStoreCircuitBreaker(db)
	ctx := context.Background()

	// Setup mock expectation
	mock.ExpectExec("UPDATE topic_state").
		WithArgs("test-topic").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Execute statement
	result, err := lcb.ExecContext(ctx, "UPDATE topic_state SET status = 'leased' WHERE topic_id = ?", "test-topic")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Verify result
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("failed to get rows affected: %v", err)
	}

	if rowsAffected != 1 {
		t.Errorf("expected 1 row affected, got %d", rowsAffected)
	}

	// Verify circuit breaker state
	if lcb.State() != gobreaker.StateClosed {
		t.Errorf("expected state to remain Closed after success, got %s", lcb.State())
	}

	// Verify all expectations were met
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLeaseStoreCircuitBreaker_CircuitOpens_AfterConsecutiveFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Create circuit breaker with custom config for faster testing
	cfg := Config{
		Name:             "test-lease-store",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          100 * time.Millisecond, // Short timeout for testing
		FailureThreshold: 1.0,                    // Open on 100% failure
		MinRequests:      5,                      // Trip after 5 consecutive failures
	}
	lcb := NewLeaseStoreCircuitBreakerWithConfig(db, cfg)
	ctx := context.Background()

	// Setup mock to return error for 5 consecutive queries
	expectedErr := errors.New("database connection failed")
	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(expectedErr)
	}

	// Execute 5 failing queries
	for i := 0; i < 5; i++ {
		_, err := lcb.QueryContext(ctx, "SELECT * FROM topic_state")
		if err == nil {
			t.Errorf("attempt %d: expected error, got nil", i+1)
		}
	}

	// Circuit should now be open
	if !lcb.IsOpen() {
		t.Errorf("expected circuit to be open after %d consecutive failures, state: %s", 5, lcb.State())
	}

	// Verify that next request fails immediately without hitting the database
	_, err = lcb.QueryContext(ctx, "SELECT * FROM topic_state")
	if err == nil {
		t.Fatal("expected error when circuit is open")
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}

	// No more mock expectations should be set since circuit is open
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLeaseStoreCircuitBreaker_CircuitHalfOpen_AfterTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Create circuit breaker with short timeout for testing
	cfg := Config{
		Name:             "test-lease-store",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond, // Very short timeout for testing
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
	lcb := NewLeaseStoreCircuitBreakerWithConfig(db, cfg)
	ctx := context.Background()

	// Trip the circuit (5 consecutive failures)
	expectedErr := errors.New("database connection failed")
	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(expectedErr)
	}
	for i := 0; i < 5; i++ {
		_, _ = lcb.QueryContext(ctx, "SELECT * FROM topic_state")
	}

	// Verify circuit is open
	if !lcb.IsOpen() {
		t.Fatal("expected circuit to be open")
	}

	// Wait for timeout
	time.Sleep(100 * time.Millisecond)

	// Setup successful query for half-open state
	rows := sqlmock.NewRows([]string{"id"}).AddRow(1)
	mock.ExpectQuery("SELECT (.+)").WillReturnRows(rows)

	// Execute query - should transition to half-open and succeed
	result, err := lcb.QueryContext(ctx, "SELECT * FROM topic_state")
	if err != nil {
		t.Fatalf("expected query to succeed in half-open state, got %v", err)
	}
	_ = result.Close()

	// After successful requests in half-open state, circuit should close
	// Note: This may require multiple successful requests depending on MaxRequests
}

func TestLeaseStoreCircuitBreaker_QueryRowContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	lcb := NewLeaseStoreCircuitBreaker(db)
	ctx := context.Background()

	// Setup mock expectation
	rows := sqlmock.NewRows([]string{"id", "topic_id"}).
		AddRow(1, "test-topic")
	mock.ExpectQuery("SELECT (.+) FROM topic_state WHERE id = ?").
		WithArgs(1).
		WillReturnRows(rows)

	// Execute query
	row := lcb.QueryRowContext(ctx, "SELECT id, topic_id FROM topic_state WHERE id = ?", 1)

	// Scan result
	var id int
	var topicID string
	if err := row.Scan(&id, &topicID); err != nil {
		t.Fatalf("failed to scan row: %v", err)
	}

	if id != 1 || topicID != "test-topic" {
		t.Errorf("expected id=1, topic_id=test-topic, got id=%d, topic_id=%s", id, topicID)
	}

	// Verify all expectations were met
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLeaseStoreCircuitBreaker_DB(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	lcb := NewLeaseStoreCircuitBreaker(db)

	if lcb.DB() != db {
		t.Error("expected DB() to return underlying database connection")
	}
}

func TestLeaseStoreConfig(t *testing.T) {
	cfg := LeaseStoreConfig()

	if cfg.Name != "lease-store" {
		t.Errorf("expected name 'lease-store', got '%s'", cfg.Name)
	}

	if cfg.MaxRequests != 3 {
		t.Errorf("expected MaxRequests 3, got %d", cfg.MaxRequests)
	}

	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", cfg.Timeout)
	}

	if cfg.MinRequests != 5 {
		t.Errorf("expected MinRequests 5, got %d", cfg.MinRequests)
	}

	if cfg.FailureThreshold != 1.0 {
		t.Errorf("expected FailureThreshold 1.0, got %f", cfg.FailureThreshold)
	}
}
