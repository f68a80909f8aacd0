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

// Batch status values
const (
	BatchStatusActive   = "active"
	BatchStatusExpired  = "expired"
	BatchStatusConsumed = "consumed"
	BatchStatusDamaged  = "damaged"
)

// StockBatch is one received lot of an item. RemainingQuantity only moves
// through allocation, reversal, reconciliation, and the expiry sweep; the
// database enforces 0 <= remaining_quantity <= quantity.
type StockBatch struct {
	ID                string     `db:"id" json:"id"`
	ItemID            string     `db:"item_id" json:"item_id"`
	BatchNumber       string     `db:"batch_number" json:"batch_number"`
	Quantity          int        `db:"quantity" json:"quantity"`
	RemainingQuantity int        `db:"remaining_quantity" json:"remaining_quantity"`
	UnitCostCents     int        `db:"unit_cost_cents" json:"unit_cost_cents"`
	ManufacturedAt    *time.Time `db:"manufactured_at" json:"manufactured_at,omitempty"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ReceivedAt        time.Time  `db:"received_at" json:"received_at"`
	SupplierID        *string    `db:"supplier_id" json:"supplier_id,omitempty"`
	PurchaseOrderID   *string    `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListByItem lists batches for an item, soonest expiry first
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE item_id = $1
		ORDER BY expires_at NULLS LAST, received_at
	`
	if err := r.db.SelectContext(ctx, &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// SumActiveRemaining returns the sum of active batch remainders for an item.
// This is the ground truth the cached aggregate is audited against.
func (r *BatchRepository) SumActiveRemaining(ctx context.Context, itemID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(remaining_quantity) FROM stock_batches WHERE item_id = $1 AND status = 'active'`
	if err := r.db.GetContext(ctx, &total, query, itemID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// GetExpiringBatches gets active batches with stock expiring within days,
// excluding already-expired ones.
func (r *BatchRepository) GetExpiringBatches(ctx context.Context, withinDays int) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE status = 'active' AND remaining_quantity > 0
		AND expires_at IS NOT NULL
		AND expires_at > NOW()
		AND expires_at <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expires_at
	`
	if err := r.db.SelectContext(ctx, &batches, query, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// GetExpiredBatches gets active batches whose expiry has passed but that
// still carry stock. These are the sweeper's work queue.
func (r *BatchRepository) GetExpiredBatches(ctx context.Context) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE status = 'active' AND remaining_quantity > 0
		AND expires_at IS NOT NULL AND expires_at < NOW()
		ORDER BY expires_at
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// Transactional variants used by the allocation engine, receiving pipeline,
// count reconciler, and sweeper.

// CreateTx creates a new batch within tx.
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *StockBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.Status == "" {
		batch.Status = BatchStatusActive
	}

	query := `
		INSERT INTO stock_batches (
			id, item_id, batch_number, quantity, remaining_quantity,
			unit_cost_cents, manufactured_at, expires_at, received_at,
			supplier_id, purchase_order_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		batch.ID, batch.ItemID, batch.BatchNumber, batch.Quantity,
		batch.RemainingQuantity, batch.UnitCostCents, batch.ManufacturedAt,
		batch.ExpiresAt, batch.ReceivedAt, batch.SupplierID,
		batch.PurchaseOrderID, batch.Status,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListActiveForUpdateTx locks and returns the item's active batches that
// still carry stock, in allocation order: soonest expiry first, nil expiry
// last, oldest receipt breaking ties.
func (r *BatchRepository) ListActiveForUpdateTx(ctx context.Context, tx *sqlx.Tx, itemID string) ([]*StockBatch, error) {
	var batches []*StockBatch
	query := `
		SELECT * FROM stock_batches
		WHERE item_id = $1 AND status = 'active' AND remaining_quantity > 0
		ORDER BY expires_at NULLS LAST, received_at
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// GetForUpdateTx locks and returns one batch row within tx.
func (r *BatchRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*StockBatch, error) {
	var batch StockBatch
	query := `SELECT * FROM stock_batches WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// AddRemainingTx adjusts a batch's remaining quantity by delta and keeps its
// status in step: a batch drained to zero becomes consumed, a consumed batch
// credited back above zero becomes active again (allocation reversal).
func (r *BatchRepository) AddRemainingTx(ctx context.Context, tx *sqlx.Tx, id string, delta int) error {
	query := `
		UPDATE stock_batches SET
			remaining_quantity = remaining_quantity + $2,
			status = CASE
				WHEN remaining_quantity + $2 = 0 AND status = 'active' THEN 'consumed'
				WHEN remaining_quantity + $2 > 0 AND status = 'consumed' THEN 'active'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, id, delta)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// SetStatusTx sets a batch's status within tx.
func (r *BatchRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id, status string) error {
	query := `UPDATE stock_batches SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}
