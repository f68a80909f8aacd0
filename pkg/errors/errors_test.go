package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrityViolation(t *testing.T) {
	err := IntegrityViolation("item-1", 15, 10)

	assert.ErrorIs(t, err, ErrIntegrityViolation)
	assert.Equal(t, "INTEGRITY_VIOLATION", err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Contains(t, err.Message, "15")
	assert.Contains(t, err.Message, "10")
}

func TestDuplicateReceipt(t *testing.T) {
	err := DuplicateReceipt("po-1")

	assert.ErrorIs(t, err, ErrDuplicateReceipt)
	assert.Equal(t, "DUPLICATE_RECEIPT", err.Code)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
}

func TestConcurrencyConflict_WrapsCause(t *testing.T) {
	cause := Conflict("lost the race")
	err := ConcurrencyConflict(cause)

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "CONCURRENCY_CONFLICT", err.Code)
}
