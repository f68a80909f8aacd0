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

func TestItemRepository_CreateAndGet(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	item := createTestItem(t, repo, "Cold Brew Concentrate")
	require.NotEmpty(t, item.ID)
	require.False(t, item.CreatedAt.IsZero())

	got, err := repo.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.SKU, got.SKU)
	assert.Equal(t, "Cold Brew Concentrate", got.Name)
	assert.Zero(t, got.AggregateStock)
	assert.True(t, got.IsActive)
}

func TestItemRepository_DuplicateSKU(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	first := createTestItem(t, repo, "Soda Syrup")

	dup := &repository.InventoryItem{
		SKU:      first.SKU,
		Name:     "Soda Syrup Copy",
		Category: "Beverages",
		Unit:     "piece",
		IsActive: true,
	}
	err := repo.Create(context.Background(), dup)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestItemRepository_GetBySKU(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	item := createTestItem(t, repo, "Paper Cups")

	got, err := repo.GetBySKU(context.Background(), item.SKU)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestItemRepository_Update(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	item := createTestItem(t, repo, "Espresso Beans")
	item.Name = "Espresso Beans Dark Roast"
	item.ReorderLevel = 30

	err := repo.Update(context.Background(), item)
	require.NoError(t, err)

	got, err := repo.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Espresso Beans Dark Roast", got.Name)
	assert.Equal(t, 30, got.ReorderLevel)
}

func TestItemRepository_Deactivate(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	item := createTestItem(t, repo, "Discontinued Wrap")

	err := repo.Deactivate(context.Background(), item.ID)
	require.NoError(t, err)

	items, total, err := repo.List(context.Background(), 1, 50, "")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	// Row survives deactivation; the ledger still needs it.
	got, err := repo.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestItemRepository_List_FiltersByCategory(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)

	beverage := createTestItem(t, repo, "Iced Tea")
	snack := createTestItem(t, repo, "Granola Bar")
	snack.Category = "Snacks"
	require.NoError(t, repo.Update(context.Background(), snack))

	items, total, err := repo.List(context.Background(), 1, 50, "Snacks")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, snack.ID, items[0].ID)
	assert.NotEqual(t, beverage.ID, items[0].ID)
}

func TestItemRepository_AddToAggregateTx(t *testing.T) {
	suite.ResetData(t)
	repo := repository.NewItemRepository(suite.DB)
	ctx := context.Background()

	item := createTestItem(t, repo, "Orange Juice")

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		locked, err := repo.GetForUpdateTx(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		require.Zero(t, locked.AggregateStock)
		return repo.AddToAggregateTx(ctx, tx, item.ID, 25)
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.AggregateStock)
}
