package repository_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	apperrors "github.com/kioskly/kiosk-backend/pkg/errors"
)

func createTestPO(t *testing.T, repo *repository.PurchaseOrderRepository, itemID string, qty int) *repository.PurchaseOrder {
	t.Helper()

	fixture := suite.Fixtures.PurchaseOrder()
	po := &repository.PurchaseOrder{SupplierID: fixture.SupplierID}
	lines := []*repository.PurchaseOrderLine{
		{ItemID: itemID, QuantityOrdered: qty, UnitCostCents: 120},
	}
	err := repo.Create(context.Background(), po, lines)
	require.NoError(t, err)
	return po
}

func TestPurchaseOrderRepository_CreateAndGet(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	pos := repository.NewPurchaseOrderRepository(suite.DB)

	item := createTestItem(t, items, "Bagels")
	po := createTestPO(t, pos, item.ID, 60)

	got, err := pos.GetByID(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.POStatusDraft, got.Status)
	assert.Nil(t, got.ReceivedAt)

	lines, err := pos.ListLines(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, item.ID, lines[0].ItemID)
	assert.Equal(t, 60, lines[0].QuantityOrdered)
	assert.Zero(t, lines[0].QuantityReceived)
}

func TestPurchaseOrderRepository_UpdateStatus(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	pos := repository.NewPurchaseOrderRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, items, "Muffins")
	po := createTestPO(t, pos, item.ID, 30)

	err := pos.UpdateStatus(ctx, po.ID, repository.POStatusDraft, repository.POStatusSent)
	require.NoError(t, err)

	got, err := pos.GetByID(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.POStatusSent, got.Status)
}

func TestPurchaseOrderRepository_UpdateStatus_WrongState(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	pos := repository.NewPurchaseOrderRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, items, "Scones")
	po := createTestPO(t, pos, item.ID, 30)

	// Still draft, so sent -> confirmed must refuse.
	err := pos.UpdateStatus(ctx, po.ID, repository.POStatusSent, repository.POStatusConfirmed)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "draft")
}

func TestPurchaseOrderRepository_List_FiltersByStatus(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	pos := repository.NewPurchaseOrderRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, items, "Pretzels")
	createTestPO(t, pos, item.ID, 10)
	sent := createTestPO(t, pos, item.ID, 20)
	require.NoError(t, pos.UpdateStatus(ctx, sent.ID, repository.POStatusDraft, repository.POStatusSent))

	got, total, err := pos.List(ctx, repository.POStatusSent, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)
}

func TestPurchaseOrderRepository_ReceiveFlowTx(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	pos := repository.NewPurchaseOrderRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, items, "Cookies")
	po := createTestPO(t, pos, item.ID, 50)

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		locked, err := pos.GetForUpdateTx(ctx, tx, po.ID)
		if err != nil {
			return err
		}
		require.Equal(t, repository.POStatusDraft, locked.Status)

		if err := pos.AddLineReceivedTx(ctx, tx, po.ID, item.ID, 50); err != nil {
			return err
		}
		return pos.MarkReceivedTx(ctx, tx, po.ID)
	})
	require.NoError(t, err)

	got, err := pos.GetByID(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.POStatusReceived, got.Status)
	require.NotNil(t, got.ReceivedAt)

	lines, err := pos.ListLines(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 50, lines[0].QuantityReceived)
}

func TestPurchaseOrderRepository_AddLineReceivedTx_UnknownLine(t *testing.T) {
	suite.ResetData(t)
	items := repository.NewItemRepository(suite.DB)
	pos := repository.NewPurchaseOrderRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, items, "Brownies")
	other := createTestItem(t, items, "Blondies")
	po := createTestPO(t, pos, item.ID, 10)

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		return pos.AddLineReceivedTx(ctx, tx, po.ID, other.ID, 10)
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
