package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemFixture represents test inventory item data
type ItemFixture struct {
	ID              string
	SKU             string
	Name            string
	Category        string
	Unit            string
	CostPriceCents  int
	MinStock        int
	ReorderLevel    int
	ReorderQuantity int
	Perishable      bool
	AggregateStock  int
	IsActive        bool
	CreatedAt       time.Time
}

// BatchFixture represents test stock batch data
type BatchFixture struct {
	ID                string
	ItemID            string
	BatchNumber       string
	Quantity          int
	RemainingQuantity int
	UnitCostCents     int
	ExpiresAt         *time.Time
	ReceivedAt        time.Time
	Status            string
}

// PurchaseOrderFixture represents test purchase order data
type PurchaseOrderFixture struct {
	ID         string
	SupplierID string
	Status     string
	CreatedAt  time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Item creates an inventory item fixture with defaults
func (f *FixtureFactory) Item(opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	item := ItemFixture{
		ID:              uuid.New().String(),
		SKU:             fmt.Sprintf("SKU-%04d", seq),
		Name:            fmt.Sprintf("Test Item %d", seq),
		Category:        "Beverages",
		Unit:            "piece",
		CostPriceCents:  150,
		MinStock:        10,
		ReorderLevel:    20,
		ReorderQuantity: 50,
		Perishable:      true,
		AggregateStock:  0,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithSKU sets the item SKU
func WithSKU(sku string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.SKU = sku
	}
}

// WithItemName sets the item name
func WithItemName(name string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Name = name
	}
}

// WithCategory sets the item category
func WithCategory(category string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Category = category
	}
}

// WithStockLevels sets min stock, reorder level, and reorder quantity
func WithStockLevels(min, reorderLevel, reorderQty int) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.MinStock = min
		i.ReorderLevel = reorderLevel
		i.ReorderQuantity = reorderQty
	}
}

// Batch creates a stock batch fixture with defaults
func (f *FixtureFactory) Batch(itemID string, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()
	expiry := time.Now().AddDate(0, 0, 14)

	batch := BatchFixture{
		ID:                uuid.New().String(),
		ItemID:            itemID,
		BatchNumber:       fmt.Sprintf("LOT-%04d", seq),
		Quantity:          100,
		RemainingQuantity: 100,
		UnitCostCents:     150,
		ExpiresAt:         &expiry,
		ReceivedAt:        time.Now(),
		Status:            "active",
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithQuantity sets batch quantity and remaining quantity
func WithQuantity(qty int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.Quantity = qty
		b.RemainingQuantity = qty
	}
}

// WithExpiry sets the batch expiry
func WithExpiry(expiresAt time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiresAt = &expiresAt
	}
}

// WithNoExpiry clears the batch expiry (non-perishable lot)
func WithNoExpiry() func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiresAt = nil
	}
}

// WithReceivedAt sets when the batch was received
func WithReceivedAt(receivedAt time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ReceivedAt = receivedAt
	}
}

// PurchaseOrder creates a purchase order fixture with defaults
func (f *FixtureFactory) PurchaseOrder(opts ...func(*PurchaseOrderFixture)) PurchaseOrderFixture {
	po := PurchaseOrderFixture{
		ID:         uuid.New().String(),
		SupplierID: uuid.New().String(),
		Status:     "confirmed",
		CreatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(&po)
	}

	return po
}

// WithPOStatus sets the purchase order status
func WithPOStatus(status string) func(*PurchaseOrderFixture) {
	return func(p *PurchaseOrderFixture) {
		p.Status = status
	}
}
