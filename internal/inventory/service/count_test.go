package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
)

func costedBatch(id string, remaining, unitCostCents int) *repository.StockBatch {
	return &repository.StockBatch{
		ID:                id,
		RemainingQuantity: remaining,
		UnitCostCents:     unitCostCents,
		Status:            repository.BatchStatusActive,
	}
}

func TestPlanVarianceDeduction_SpansBatches(t *testing.T) {
	batches := []*repository.StockBatch{
		costedBatch("b1", 3, 100),
		costedBatch("b2", 10, 120),
	}

	deductions := planVarianceDeduction(batches, 5)

	require.Len(t, deductions, 2)
	assert.Equal(t, "b1", deductions[0].BatchID)
	assert.Equal(t, 3, deductions[0].Quantity)
	assert.Equal(t, "b2", deductions[1].BatchID)
	assert.Equal(t, 2, deductions[1].Quantity)
}

func TestPlanVarianceDeduction_DeficitExceedsBatchSum(t *testing.T) {
	batches := []*repository.StockBatch{
		costedBatch("b1", 2, 100),
	}

	deductions := planVarianceDeduction(batches, 5)

	require.Len(t, deductions, 1)
	assert.Equal(t, 2, deductions[0].Quantity, "only the batch's stock can be mapped; the rest stays batchless")
}

func TestPlanVarianceDeduction_ZeroDeficit(t *testing.T) {
	batches := []*repository.StockBatch{costedBatch("b1", 10, 100)}

	assert.Empty(t, planVarianceDeduction(batches, 0))
}

func TestWeightedAvgUnitCost(t *testing.T) {
	batches := []*repository.StockBatch{
		costedBatch("b1", 10, 100),
		costedBatch("b2", 30, 200),
	}

	// (10*100 + 30*200) / 40 = 175
	assert.Equal(t, 175, weightedAvgUnitCost(batches, 999))
}

func TestWeightedAvgUnitCost_EmptyBatchesUsesFallback(t *testing.T) {
	assert.Equal(t, 150, weightedAvgUnitCost(nil, 150))
	assert.Equal(t, 150, weightedAvgUnitCost([]*repository.StockBatch{costedBatch("b1", 0, 100)}, 150))
}

func TestEnrichItem_NearestExpiry(t *testing.T) {
	item := &repository.InventoryItem{ID: "item-1"}
	soon := time.Now().UTC().AddDate(0, 0, 2)
	later := time.Now().UTC().AddDate(0, 0, 9)

	batches := []*repository.StockBatch{
		{ID: "b1", ExpiresAt: &later, RemainingQuantity: 5, Status: repository.BatchStatusActive},
		{ID: "b2", ExpiresAt: &soon, RemainingQuantity: 5, Status: repository.BatchStatusActive},
		{ID: "b3", ExpiresAt: nil, RemainingQuantity: 5, Status: repository.BatchStatusActive},
	}

	enriched := enrichItem(item, batches)

	require.NotNil(t, enriched.NearestExpiry)
	assert.True(t, enriched.NearestExpiry.Equal(soon))
}
