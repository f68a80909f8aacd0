package database

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/kioskly/kiosk-backend/pkg/errors"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "serialization failure",
			err:  &pq.Error{Code: "40001"},
			want: true,
		},
		{
			name: "deadlock detected",
			err:  &pq.Error{Code: "40P01"},
			want: true,
		},
		{
			name: "wrapped serialization failure",
			err:  fmt.Errorf("allocate: %w", &pq.Error{Code: "40001"}),
			want: true,
		},
		{
			name: "unique violation is not retryable",
			err:  &pq.Error{Code: "23505"},
			want: false,
		},
		{
			name: "plain error is not retryable",
			err:  fmt.Errorf("boom"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestMapPQError(t *testing.T) {
	t.Run("unique batch number", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23505", Constraint: "stock_batches_item_batch_number_key"})
		assert.NotNil(t, appErr)
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	t.Run("remaining quantity check", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23514", Constraint: "stock_batches_remaining_quantity_range"})
		assert.NotNil(t, appErr)
		assert.True(t, errors.Is(appErr, errors.ErrValidation))
	})

	t.Run("foreign key", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23503"})
		assert.NotNil(t, appErr)
		assert.Equal(t, "BAD_REQUEST", appErr.Code)
	})

	t.Run("not a pq error", func(t *testing.T) {
		assert.Nil(t, MapPQError(fmt.Errorf("boom")))
	})
}
