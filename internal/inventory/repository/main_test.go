package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

// createTestItem creates an item for tests that need a parent item
func createTestItem(t *testing.T, repo *repository.ItemRepository, name string) *repository.InventoryItem {
	t.Helper()

	fixture := suite.Fixtures.Item(testutil.WithItemName(name))
	item := &repository.InventoryItem{
		SKU:             fixture.SKU,
		Name:            fixture.Name,
		Category:        fixture.Category,
		Unit:            fixture.Unit,
		CostPriceCents:  fixture.CostPriceCents,
		MinStock:        fixture.MinStock,
		ReorderLevel:    fixture.ReorderLevel,
		ReorderQuantity: fixture.ReorderQuantity,
		Perishable:      fixture.Perishable,
		IsActive:        true,
	}
	err := repo.Create(context.Background(), item)
	require.NoError(t, err)
	return item
}

// createTestBatch creates an active batch inside its own transaction
func createTestBatch(t *testing.T, repo *repository.BatchRepository, itemID string, qty int, expiresAt *time.Time) *repository.StockBatch {
	t.Helper()

	fixture := suite.Fixtures.Batch(itemID, testutil.WithQuantity(qty))
	batch := &repository.StockBatch{
		ItemID:            itemID,
		BatchNumber:       fixture.BatchNumber,
		Quantity:          qty,
		RemainingQuantity: qty,
		UnitCostCents:     fixture.UnitCostCents,
		ExpiresAt:         expiresAt,
		ReceivedAt:        time.Now().UTC(),
	}

	err := suite.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return repo.CreateTx(context.Background(), tx, batch)
	})
	require.NoError(t, err)
	return batch
}

func timePtr(t time.Time) *time.Time {
	return &t
}
