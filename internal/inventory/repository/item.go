package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/errors"
)

// InventoryItem is a catalog entry: static per-item configuration plus the
// cached aggregate stock. AggregateStock is denormalized from active batch
// remainders and must only be changed together with batch mutations inside
// the same transaction.
type InventoryItem struct {
	ID                string    `db:"id" json:"id"`
	SKU               string    `db:"sku" json:"sku"`
	Barcode           *string   `db:"barcode" json:"barcode,omitempty"`
	Name              string    `db:"name" json:"name"`
	Category          string    `db:"category" json:"category"`
	SupplierID        *string   `db:"supplier_id" json:"supplier_id,omitempty"`
	Unit              string    `db:"unit" json:"unit"`
	CostPriceCents    int       `db:"cost_price_cents" json:"cost_price_cents"`
	SellingPriceCents int       `db:"selling_price_cents" json:"selling_price_cents"`
	MinStock          int       `db:"min_stock" json:"min_stock"`
	MaxStock          *int      `db:"max_stock" json:"max_stock,omitempty"`
	ReorderLevel      int       `db:"reorder_level" json:"reorder_level"`
	ReorderQuantity   int       `db:"reorder_quantity" json:"reorder_quantity"`
	ShelfLifeDays     *int      `db:"shelf_life_days" json:"shelf_life_days,omitempty"`
	Perishable        bool      `db:"perishable" json:"perishable"`
	AggregateStock    int       `db:"aggregate_stock" json:"aggregate_stock"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ItemRepository handles inventory item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new inventory item
func (r *ItemRepository) Create(ctx context.Context, item *InventoryItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_items (
			id, sku, barcode, name, category, supplier_id, unit,
			cost_price_cents, selling_price_cents, min_stock, max_stock,
			reorder_level, reorder_quantity, shelf_life_days, perishable,
			aggregate_stock, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.SKU, item.Barcode, item.Name, item.Category,
		item.SupplierID, item.Unit, item.CostPriceCents, item.SellingPriceCents,
		item.MinStock, item.MaxStock, item.ReorderLevel, item.ReorderQuantity,
		item.ShelfLifeDays, item.Perishable, item.AggregateStock, item.IsActive,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*InventoryItem, error) {
	var item InventoryItem
	query := `SELECT * FROM inventory_items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// GetBySKU gets an item by SKU
func (r *ItemRepository) GetBySKU(ctx context.Context, sku string) (*InventoryItem, error) {
	var item InventoryItem
	query := `SELECT * FROM inventory_items WHERE sku = $1`
	if err := r.db.GetContext(ctx, &item, query, sku); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// List lists items with pagination and optional category filter
func (r *ItemRepository) List(ctx context.Context, page, perPage int, category string) ([]*InventoryItem, int64, error) {
	var total int64
	args := []interface{}{}

	countQuery := `SELECT COUNT(*) FROM inventory_items WHERE is_active = true`
	query := `SELECT * FROM inventory_items WHERE is_active = true`

	if category != "" {
		countQuery += ` AND category = $1`
		query += ` AND category = $1`
		args = append(args, category)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query += ` ORDER BY name`
	if category != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, offset)

	var items []*InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetAllActive gets all active items
func (r *ItemRepository) GetAllActive(ctx context.Context) ([]*InventoryItem, error) {
	var items []*InventoryItem
	query := `SELECT * FROM inventory_items WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}

// Update updates an item's catalog configuration. AggregateStock is not
// touched here; it only moves with batch mutations.
func (r *ItemRepository) Update(ctx context.Context, item *InventoryItem) error {
	query := `
		UPDATE inventory_items SET
			sku = $2, barcode = $3, name = $4, category = $5, supplier_id = $6,
			unit = $7, cost_price_cents = $8, selling_price_cents = $9,
			min_stock = $10, max_stock = $11, reorder_level = $12,
			reorder_quantity = $13, shelf_life_days = $14, perishable = $15,
			is_active = $16, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		item.ID, item.SKU, item.Barcode, item.Name, item.Category,
		item.SupplierID, item.Unit, item.CostPriceCents, item.SellingPriceCents,
		item.MinStock, item.MaxStock, item.ReorderLevel, item.ReorderQuantity,
		item.ShelfLifeDays, item.Perishable, item.IsActive,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// Deactivate retires an item from the catalog. Items are never deleted so
// ledger history stays attributable.
func (r *ItemRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE inventory_items SET is_active = false, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// Transactional variants. Mutating operations lock the item row first so
// concurrent allocations, receipts, and reconciliations against the same
// item serialize instead of racing for the last units.

// GetForUpdateTx locks and returns the item row within tx.
func (r *ItemRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*InventoryItem, error) {
	var item InventoryItem
	query := `SELECT * FROM inventory_items WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// AddToAggregateTx adjusts the cached aggregate stock by delta within tx.
func (r *ItemRepository) AddToAggregateTx(ctx context.Context, tx *sqlx.Tx, id string, delta int) error {
	query := `UPDATE inventory_items SET aggregate_stock = aggregate_stock + $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, delta)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}
