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

// Purchase order status values
const (
	POStatusDraft     = "draft"
	POStatusSent      = "sent"
	POStatusConfirmed = "confirmed"
	POStatusReceived  = "received"
	POStatusCancelled = "cancelled"
)

// PurchaseOrder is an order placed with a supplier. It transitions to
// received exactly once; the receiving pipeline enforces this under a row
// lock.
type PurchaseOrder struct {
	ID         string     `db:"id" json:"id"`
	SupplierID string     `db:"supplier_id" json:"supplier_id"`
	Status     string     `db:"status" json:"status"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"received_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// PurchaseOrderLine is one item on a purchase order
type PurchaseOrderLine struct {
	ID               string    `db:"id" json:"id"`
	PurchaseOrderID  string    `db:"purchase_order_id" json:"purchase_order_id"`
	ItemID           string    `db:"item_id" json:"item_id"`
	QuantityOrdered  int       `db:"quantity_ordered" json:"quantity_ordered"`
	QuantityReceived int       `db:"quantity_received" json:"quantity_received"`
	UnitCostCents    int       `db:"unit_cost_cents" json:"unit_cost_cents"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// PurchaseOrderRepository handles purchase order persistence
type PurchaseOrderRepository struct {
	db *database.DB
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *database.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// Create creates a draft purchase order with its lines
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *PurchaseOrder, lines []*PurchaseOrderLine) error {
	if po.ID == "" {
		po.ID = uuid.New().String()
	}
	if po.Status == "" {
		po.Status = POStatusDraft
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO purchase_orders (id, supplier_id, status, notes)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			po.ID, po.SupplierID, po.Status, po.Notes,
		).Scan(&po.CreatedAt, &po.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		lineQuery := `
			INSERT INTO purchase_order_lines (
				id, purchase_order_id, item_id, quantity_ordered,
				quantity_received, unit_cost_cents
			) VALUES ($1, $2, $3, $4, 0, $5)
			RETURNING created_at
		`
		for _, line := range lines {
			if line.ID == "" {
				line.ID = uuid.New().String()
			}
			line.PurchaseOrderID = po.ID

			err := tx.QueryRowxContext(ctx, lineQuery,
				line.ID, line.PurchaseOrderID, line.ItemID,
				line.QuantityOrdered, line.UnitCostCents,
			).Scan(&line.CreatedAt)
			if err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}

		return nil
	})
}

// GetByID gets a purchase order by ID
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id string) (*PurchaseOrder, error) {
	var po PurchaseOrder
	query := `SELECT * FROM purchase_orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &po, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}
	return &po, nil
}

// ListLines lists the lines of a purchase order
func (r *PurchaseOrderRepository) ListLines(ctx context.Context, poID string) ([]*PurchaseOrderLine, error) {
	var lines []*PurchaseOrderLine
	query := `SELECT * FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &lines, query, poID); err != nil {
		return nil, err
	}
	return lines, nil
}

// List lists purchase orders with optional status filter, newest first
func (r *PurchaseOrderRepository) List(ctx context.Context, status string, page, perPage int) ([]*PurchaseOrder, int64, error) {
	var total int64
	args := []interface{}{}

	countQuery := `SELECT COUNT(*) FROM purchase_orders`
	query := `SELECT * FROM purchase_orders`

	if status != "" {
		countQuery += ` WHERE status = $1`
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query += ` ORDER BY created_at DESC`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, offset)

	var pos []*PurchaseOrder
	if err := r.db.SelectContext(ctx, &pos, query, args...); err != nil {
		return nil, 0, err
	}

	return pos, total, nil
}

// UpdateStatus moves a purchase order along draft -> sent -> confirmed.
// Receipt is handled separately under a row lock.
func (r *PurchaseOrderRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	query := `UPDATE purchase_orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		po, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return errors.Conflict("purchase order is " + po.Status + ", expected " + from)
	}

	return nil
}

// Transactional variants used by the receiving pipeline.

// GetForUpdateTx locks and returns the purchase order row within tx. The
// lock makes the received-exactly-once check race-free.
func (r *PurchaseOrderRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*PurchaseOrder, error) {
	var po PurchaseOrder
	query := `SELECT * FROM purchase_orders WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &po, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}
	return &po, nil
}

// AddLineReceivedTx bumps a line's received quantity within tx.
func (r *PurchaseOrderRepository) AddLineReceivedTx(ctx context.Context, tx *sqlx.Tx, poID, itemID string, qty int) error {
	query := `
		UPDATE purchase_order_lines
		SET quantity_received = quantity_received + $3
		WHERE purchase_order_id = $1 AND item_id = $2
	`
	result, err := tx.ExecContext(ctx, query, poID, itemID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("purchase order line")
	}

	return nil
}

// MarkReceivedTx transitions the order to received within tx.
func (r *PurchaseOrderRepository) MarkReceivedTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	query := `UPDATE purchase_orders SET status = 'received', received_at = NOW(), updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("purchase order")
	}

	return nil
}
