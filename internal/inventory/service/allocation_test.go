package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
)

func activeBatch(id string, remaining int, expiresAt *time.Time) *repository.StockBatch {
	return &repository.StockBatch{
		ID:                id,
		BatchNumber:       "LOT-" + id,
		Quantity:          remaining,
		RemainingQuantity: remaining,
		ExpiresAt:         expiresAt,
		Status:            repository.BatchStatusActive,
	}
}

func daysFromNow(days int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, days)
	return &t
}

func TestPlanAllocation_SpansBatchesInOrder(t *testing.T) {
	now := time.Now().UTC()

	// Batches arrive pre-sorted: soonest expiry first.
	batches := []*repository.StockBatch{
		activeBatch("b1", 5, daysFromNow(2)),
		activeBatch("b2", 5, daysFromNow(5)),
		activeBatch("b3", 10, daysFromNow(9)),
	}

	cuts := planAllocation(batches, 12, now)

	require.Len(t, cuts, 3)
	assert.Equal(t, "b1", cuts[0].BatchID)
	assert.Equal(t, 5, cuts[0].Quantity)
	assert.Equal(t, "b2", cuts[1].BatchID)
	assert.Equal(t, 5, cuts[1].Quantity)
	assert.Equal(t, "b3", cuts[2].BatchID)
	assert.Equal(t, 2, cuts[2].Quantity)
}

func TestPlanAllocation_SingleBatchCoversRequest(t *testing.T) {
	now := time.Now().UTC()
	batches := []*repository.StockBatch{
		activeBatch("b1", 50, daysFromNow(3)),
		activeBatch("b2", 50, daysFromNow(7)),
	}

	cuts := planAllocation(batches, 20, now)

	require.Len(t, cuts, 1)
	assert.Equal(t, "b1", cuts[0].BatchID)
	assert.Equal(t, 20, cuts[0].Quantity)
}

func TestPlanAllocation_SkipsExpiredBatches(t *testing.T) {
	now := time.Now().UTC()
	batches := []*repository.StockBatch{
		activeBatch("expired", 10, daysFromNow(-1)),
		activeBatch("fresh", 10, daysFromNow(4)),
	}

	cuts := planAllocation(batches, 8, now)

	require.Len(t, cuts, 1)
	assert.Equal(t, "fresh", cuts[0].BatchID)
	assert.Equal(t, 8, cuts[0].Quantity)
}

func TestPlanAllocation_PartialFulfillment(t *testing.T) {
	now := time.Now().UTC()
	batches := []*repository.StockBatch{
		activeBatch("b1", 12, daysFromNow(2)),
		activeBatch("b2", 8, daysFromNow(6)),
	}

	cuts := planAllocation(batches, 30, now)

	require.Len(t, cuts, 2)
	total := 0
	for _, c := range cuts {
		total += c.Quantity
	}
	assert.Equal(t, 20, total, "only available stock should be cut; shortfall is the caller's concern")
}

func TestPlanAllocation_OnlyExpiredStock(t *testing.T) {
	now := time.Now().UTC()
	batches := []*repository.StockBatch{
		activeBatch("b1", 10, daysFromNow(-2)),
		activeBatch("b2", 5, daysFromNow(-1)),
	}

	cuts := planAllocation(batches, 5, now)

	assert.Empty(t, cuts)
}

func TestPlanAllocation_NilExpiryBatchIsUsable(t *testing.T) {
	now := time.Now().UTC()

	// Nil expiry sorts last; it still serves the remainder.
	batches := []*repository.StockBatch{
		activeBatch("perishable", 3, daysFromNow(1)),
		activeBatch("shelf-stable", 10, nil),
	}

	cuts := planAllocation(batches, 7, now)

	require.Len(t, cuts, 2)
	assert.Equal(t, "perishable", cuts[0].BatchID)
	assert.Equal(t, 3, cuts[0].Quantity)
	assert.Equal(t, "shelf-stable", cuts[1].BatchID)
	assert.Equal(t, 4, cuts[1].Quantity)
}

func TestPlanAllocation_ExpiringExactlyNowIsExcluded(t *testing.T) {
	now := time.Now().UTC()
	exactly := now
	batches := []*repository.StockBatch{
		{ID: "boundary", RemainingQuantity: 10, ExpiresAt: &exactly, Status: repository.BatchStatusActive},
	}

	cuts := planAllocation(batches, 5, now)

	assert.Empty(t, cuts)
}

func TestPlanAllocation_ZeroRemainingSkipped(t *testing.T) {
	now := time.Now().UTC()
	batches := []*repository.StockBatch{
		activeBatch("drained", 0, daysFromNow(5)),
		activeBatch("full", 10, daysFromNow(6)),
	}

	cuts := planAllocation(batches, 4, now)

	require.Len(t, cuts, 1)
	assert.Equal(t, "full", cuts[0].BatchID)
}

func TestPlanAllocation_NoBatches(t *testing.T) {
	cuts := planAllocation(nil, 10, time.Now().UTC())
	assert.Empty(t, cuts)
}
