package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/testutil"
)

func newMockedDB(t *testing.T) (*testutil.MockDB, *database.DB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	return mockDB, database.NewFromDB(mockDB.DB, logger.New("test", "test"))
}

func fastRetry(maxRetries int) database.RetryPolicy {
	return database.RetryPolicy{MaxRetries: maxRetries, Backoff: time.Millisecond}
}

func TestTransaction_CommitsOnSuccess(t *testing.T) {
	mockDB, db := newMockedDB(t)

	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return nil
	})
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	mockDB, db := newMockedDB(t)

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	wantErr := errors.Conflict("boom")
	err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return wantErr
	})
	assert.ErrorIs(t, err, errors.ErrConflict)
	mockDB.ExpectationsWereMet(t)
}

func TestTransactionWithRetry_RecoversFromSerializationFailure(t *testing.T) {
	mockDB, db := newMockedDB(t)

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()
	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	attempts := 0
	err := db.TransactionWithRetry(context.Background(), fastRetry(3), func(tx *sqlx.Tx) error {
		attempts++
		if attempts == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	mockDB.ExpectationsWereMet(t)
}

func TestTransactionWithRetry_NonRetryableAbortsImmediately(t *testing.T) {
	mockDB, db := newMockedDB(t)

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	attempts := 0
	err := db.TransactionWithRetry(context.Background(), fastRetry(3), func(tx *sqlx.Tx) error {
		attempts++
		return errors.NotFound("item")
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, 1, attempts)
	mockDB.ExpectationsWereMet(t)
}

func TestTransactionWithRetry_ExhaustedBudgetSurfacesConflict(t *testing.T) {
	mockDB, db := newMockedDB(t)

	for i := 0; i < 2; i++ {
		mockDB.ExpectBegin()
		mockDB.ExpectRollback()
	}

	attempts := 0
	err := db.TransactionWithRetry(context.Background(), fastRetry(2), func(tx *sqlx.Tx) error {
		attempts++
		return &pq.Error{Code: "40P01"}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConcurrencyConflict)
	assert.Equal(t, 2, attempts)
	mockDB.ExpectationsWereMet(t)
}
