package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"

	"github.com/kioskly/kiosk-backend/pkg/errors"
)

// PostgreSQL error codes that warrant a transaction retry.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// IsRetryable reports whether err is a transient transaction failure
// (serialization failure or deadlock) that a fresh transaction may resolve.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == pqSerializationFailure || code == pqDeadlockDetected
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "remaining_quantity_range"):
		return errors.Validation(map[string]string{
			"remaining_quantity": "must be between 0 and the batch quantity",
		})

	case strings.Contains(constraint, "batch_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: active, expired, consumed, damaged",
		})

	case strings.Contains(constraint, "movement_type_valid"):
		return errors.Validation(map[string]string{
			"movement_type": "must be one of: in, out, adjustment, waste",
		})

	case strings.Contains(constraint, "po_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: draft, sent, confirmed, received, cancelled",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_number"):
		return "a batch with this batch number already exists for this item"
	case strings.Contains(constraint, "sku"):
		return "an item with this SKU already exists"
	case strings.Contains(constraint, "alert_identity"):
		return "an alert with this identity already exists"
	default:
		return "a record with these values already exists"
	}
}
