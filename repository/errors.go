package repository

import (
	"errors"
	"fmt"

	"fitpledge/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes that are expected to succeed on retry
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgCheckViolation       = "23514"
)

// translateError wraps err with context and maps retryable storage failures to
// apperrors.Transient and constraint violations to apperrors.DataIntegrity
func translateError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	// Application errors raised inside the repository pass through unchanged
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	wrapped := fmt.Errorf(format+": %w", append(args, err)...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apperrors.Transient(wrapped)
		case pgCheckViolation:
			return &apperrors.Error{Kind: apperrors.KindDataIntegrity, Message: "constraint " + pgErr.ConstraintName + " violated", Err: wrapped}
		}
		return wrapped
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return apperrors.Transient(wrapped)
	}

	return wrapped
}
