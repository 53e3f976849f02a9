package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes a rolled-back ledger batch may be retried on.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Ledger batches that lose a lock race are replayed this many times.
const (
	commitRetries = 3
	commitBackoff = 10 * time.Millisecond
)

// withRetry runs fn until it succeeds or fails with an error retryable
// rejects. At most maxRetries retries run and the delay doubles after each.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// connectRetryable gives up on errors another ping cannot fix: bad
// credentials (class 28) and a missing database (class 3D).
func connectRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		class := pgErr.Code[:2]
		return class != "28" && class != "3D"
	}
	return true
}

// commitRetryable reports a batch that Postgres aborted while it competed
// for balance rows with another batch. The whole transaction rolled back.
func commitRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
}
