package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
)

func appendMovement(t *testing.T, ledger *repository.LedgerRepository, m *repository.StockMovement) {
	t.Helper()

	err := suite.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return ledger.AppendTx(context.Background(), tx, m)
	})
	require.NoError(t, err)
}

func TestLedgerRepository_AppendAndList(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	batches := repository.NewBatchRepository(suite.DB)
	ledger := repository.NewLedgerRepository(suite.DB)

	item := createTestItem(t, items, "House Blend")
	batch := createTestBatch(t, batches, item.ID, 20, timePtr(time.Now().AddDate(0, 0, 10)))

	appendMovement(t, ledger, &repository.StockMovement{
		ItemID:        item.ID,
		BatchID:       &batch.ID,
		MovementType:  repository.MovementIn,
		Quantity:      20,
		UnitCostCents: 150,
		ReferenceKind: repository.RefPurchaseOrder,
		ReferenceID:   "po-1",
		PerformedBy:   "tester",
	})
	appendMovement(t, ledger, &repository.StockMovement{
		ItemID:        item.ID,
		BatchID:       &batch.ID,
		MovementType:  repository.MovementOut,
		Quantity:      -5,
		UnitCostCents: 150,
		ReferenceKind: repository.RefOrder,
		ReferenceID:   "order-1",
		PerformedBy:   "kiosk",
	})

	movements, total, err := ledger.ListByItem(context.Background(), item.ID, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, movements, 2)
	assert.Equal(t, repository.MovementOut, movements[0].MovementType, "newest first")
	assert.Equal(t, -5, movements[0].Quantity)
}

func TestLedgerRepository_AppendTx_RejectsUnknownType(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	ledger := repository.NewLedgerRepository(suite.DB)

	item := createTestItem(t, items, "Trail Mix")

	err := suite.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return ledger.AppendTx(context.Background(), tx, &repository.StockMovement{
			ItemID:        item.ID,
			MovementType:  "teleport",
			Quantity:      1,
			ReferenceKind: repository.RefOrder,
			ReferenceID:   "order-1",
			PerformedBy:   "tester",
		})
	})
	require.Error(t, err)
}

func TestLedgerRepository_ListOutByReferenceTx_SkipsReversed(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	batches := repository.NewBatchRepository(suite.DB)
	ledger := repository.NewLedgerRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, items, "Club Sandwich")
	b1 := createTestBatch(t, batches, item.ID, 10, timePtr(time.Now().AddDate(0, 0, 3)))
	b2 := createTestBatch(t, batches, item.ID, 10, timePtr(time.Now().AddDate(0, 0, 6)))

	appendMovement(t, ledger, &repository.StockMovement{
		ItemID: item.ID, BatchID: &b1.ID,
		MovementType: repository.MovementOut, Quantity: -4,
		ReferenceKind: repository.RefOrder, ReferenceID: "order-9",
		PerformedBy: "kiosk",
	})
	appendMovement(t, ledger, &repository.StockMovement{
		ItemID: item.ID, BatchID: &b2.ID,
		MovementType: repository.MovementOut, Quantity: -2,
		ReferenceKind: repository.RefOrder, ReferenceID: "order-9",
		PerformedBy: "kiosk",
	})

	// The first cut already has a compensating reversal.
	appendMovement(t, ledger, &repository.StockMovement{
		ItemID: item.ID, BatchID: &b1.ID,
		MovementType: repository.MovementIn, Quantity: 4,
		ReferenceKind: repository.RefReversal, ReferenceID: "order-9",
		PerformedBy: "system",
	})

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		pending, err := ledger.ListOutByReferenceTx(ctx, tx, "order-9")
		if err != nil {
			return err
		}
		require.Len(t, pending, 1)
		assert.Equal(t, b2.ID, *pending[0].BatchID)
		assert.Equal(t, -2, pending[0].Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerRepository_ConsumptionSince(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	ledger := repository.NewLedgerRepository(suite.DB)

	itemA := createTestItem(t, items, "Matcha Latte Mix")
	itemB := createTestItem(t, items, "Chai Mix")

	appendMovement(t, ledger, &repository.StockMovement{
		ItemID: itemA.ID, MovementType: repository.MovementOut, Quantity: -6,
		ReferenceKind: repository.RefOrder, ReferenceID: "order-1", PerformedBy: "kiosk",
	})
	appendMovement(t, ledger, &repository.StockMovement{
		ItemID: itemA.ID, MovementType: repository.MovementOut, Quantity: -4,
		ReferenceKind: repository.RefOrder, ReferenceID: "order-2", PerformedBy: "kiosk",
	})
	// Waste and receipts do not count as consumption.
	appendMovement(t, ledger, &repository.StockMovement{
		ItemID: itemB.ID, MovementType: repository.MovementWaste, Quantity: -3,
		ReferenceKind: repository.RefSweep, ReferenceID: "sweep-1", PerformedBy: "system",
	})

	totals, err := ledger.ConsumptionSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 10, totals[itemA.ID])
	_, ok := totals[itemB.ID]
	assert.False(t, ok)
}
