package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
)

func stockItem(aggregate, minStock, reorderLevel int) *repository.InventoryItem {
	return &repository.InventoryItem{
		ID:             "item-1",
		SKU:            "SKU-0001",
		Name:           "Oat Milk",
		MinStock:       minStock,
		ReorderLevel:   reorderLevel,
		AggregateStock: aggregate,
	}
}

func TestClassifyStockLevel(t *testing.T) {
	tests := []struct {
		name         string
		aggregate    int
		minStock     int
		reorderLevel int
		wantType     string
		wantSeverity string
	}{
		{"zero stock is critical", 0, 10, 20, repository.AlertOutOfStock, repository.SeverityCritical},
		{"at minimum is high", 10, 10, 20, repository.AlertLowStock, repository.SeverityHigh},
		{"below minimum is high", 4, 10, 20, repository.AlertLowStock, repository.SeverityHigh},
		{"between min and reorder is medium", 15, 10, 20, repository.AlertLowStock, repository.SeverityMedium},
		{"at reorder level is medium", 20, 10, 20, repository.AlertLowStock, repository.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := classifyStockLevel(stockItem(tt.aggregate, tt.minStock, tt.reorderLevel))
			require.NotNil(t, alert)
			assert.Equal(t, tt.wantType, alert.AlertType)
			assert.Equal(t, tt.wantSeverity, alert.Severity)
			assert.Equal(t, "item-1", alert.ItemID)
		})
	}
}

func TestClassifyStockLevel_HealthyStock(t *testing.T) {
	alert := classifyStockLevel(stockItem(21, 10, 20))
	assert.Nil(t, alert)
}

func TestClassifyBatchExpiry(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name         string
		expiresIn    int // days; negative means past
		wantType     string
		wantSeverity string
	}{
		{"past expiry is critical", -1, repository.AlertExpired, repository.SeverityCritical},
		{"within critical window is high", 2, repository.AlertExpiringSoon, repository.SeverityHigh},
		{"within warning window is medium", 5, repository.AlertExpiringSoon, repository.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := activeBatch("b1", 10, daysFromNow(tt.expiresIn))
			batch.ItemID = "item-1"

			alert := classifyBatchExpiry(batch, "Oat Milk", now, 7, 3)
			require.NotNil(t, alert)
			assert.Equal(t, tt.wantType, alert.AlertType)
			assert.Equal(t, tt.wantSeverity, alert.Severity)
			require.NotNil(t, alert.BatchID)
			assert.Equal(t, "b1", *alert.BatchID)
		})
	}
}

func TestClassifyBatchExpiry_NoAlertCases(t *testing.T) {
	now := time.Now().UTC()

	t.Run("expiry beyond warning window", func(t *testing.T) {
		batch := activeBatch("b1", 10, daysFromNow(10))
		assert.Nil(t, classifyBatchExpiry(batch, "Oat Milk", now, 7, 3))
	})

	t.Run("nil expiry", func(t *testing.T) {
		batch := activeBatch("b1", 10, nil)
		assert.Nil(t, classifyBatchExpiry(batch, "Oat Milk", now, 7, 3))
	})

	t.Run("drained batch", func(t *testing.T) {
		batch := activeBatch("b1", 0, daysFromNow(-1))
		assert.Nil(t, classifyBatchExpiry(batch, "Oat Milk", now, 7, 3))
	})

	t.Run("non-active batch", func(t *testing.T) {
		batch := activeBatch("b1", 10, daysFromNow(-1))
		batch.Status = repository.BatchStatusExpired
		assert.Nil(t, classifyBatchExpiry(batch, "Oat Milk", now, 7, 3))
	})
}
