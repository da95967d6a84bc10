// Package resilience provides retry with exponential backoff for transient
// persistence failures. The calculation engine itself never retries;
// replay belongs here, around the store.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as explicitly transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// Postgres SQLSTATE codes a fresh transaction can survive.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P03": true, // cannot_connect_now
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
}

// IsTransient reports whether the error (or anything in its chain) is worth
// retrying: an explicit TransientError, a retryable Postgres SQLSTATE, a
// SQLite busy/locked condition, or a network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientPgCodes[pgErr.Code] {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for drivers that flatten their error chains.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
