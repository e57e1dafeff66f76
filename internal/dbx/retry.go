package dbx

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// PostgreSQL SQLSTATE codes treated as transient.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// RetryPolicy bounds WithRetryTx.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// BaseDelay seeds the exponential backoff between tries.
	BaseDelay time.Duration
	// RetryableConstraints lists unique indexes whose violation signals a
	// lost race rather than bad input.
	RetryableConstraints []string
}

// DefaultRetryPolicy is used when WithRetryTx gets a zero policy.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, BaseDelay: 10 * time.Millisecond}

// WithRetryTx runs fn in a fresh transaction (see WithTx) and repeats the
// whole transaction when it fails with a serialization failure, a deadlock
// or a violation of one of policy.RetryableConstraints. Any other error is
// returned immediately.
func WithRetryTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, policy RetryPolicy, fn TxFunc) error {
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultRetryPolicy.Attempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}

	b := retry.WithMaxRetries(uint64(policy.Attempts-1), retry.NewExponential(policy.BaseDelay))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := WithTx(ctx, db, opts, fn)
		if err != nil && IsRetryable(err, policy.RetryableConstraints...) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// IsRetryable reports whether err is a transient PostgreSQL conflict.
func IsRetryable(err error, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	case pgUniqueViolation:
		for _, c := range constraints {
			if pgErr.ConstraintName == c {
				return true
			}
		}
	}
	return false
}

// IsUniqueViolation reports whether err violates the named unique index.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
