package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound            = errors.New("resource not found")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("resource conflict")
	ErrInternal            = errors.New("internal server error")
	ErrValidation          = errors.New("validation error")
	ErrDuplicateReceipt    = errors.New("purchase order already received")
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
	ErrIntegrityViolation  = errors.New("stock integrity violation")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// DuplicateReceipt signals that a purchase order was already received.
// Receiving is idempotent at the PO-status level: the second call fails
// and must create no batches or ledger rows.
func DuplicateReceipt(poID string) *AppError {
	return &AppError{
		Err:        ErrDuplicateReceipt,
		Code:       "DUPLICATE_RECEIPT",
		Message:    fmt.Sprintf("purchase order %s has already been received", poID),
		StatusCode: http.StatusConflict,
	}
}

// ConcurrencyConflict signals that a transaction lost a serialization race
// and exhausted its retries. Transient; the caller may retry the operation.
func ConcurrencyConflict(err error) *AppError {
	return &AppError{
		Err:        errors.Join(ErrConcurrencyConflict, err),
		Code:       "CONCURRENCY_CONFLICT",
		Message:    "operation conflicted with a concurrent update, please retry",
		StatusCode: http.StatusConflict,
	}
}

// IntegrityViolation signals that an item's cached aggregate stock no longer
// matches the sum of its active batch remainders.
func IntegrityViolation(itemID string, aggregate, batchSum int) *AppError {
	return &AppError{
		Err:  ErrIntegrityViolation,
		Code: "INTEGRITY_VIOLATION",
		Message: fmt.Sprintf(
			"item %s aggregate stock %d does not match active batch sum %d",
			itemID, aggregate, batchSum,
		),
		StatusCode: http.StatusInternalServerError,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
