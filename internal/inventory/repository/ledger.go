package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/pkg/database"
)

// Movement types
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
	MovementWaste      = "waste"
)

// Movement reference kinds
const (
	RefOrder         = "order"
	RefPurchaseOrder = "purchase_order"
	RefCountSession  = "count_session"
	RefReversal      = "reversal"
	RefSweep         = "sweep"
)

// StockMovement is one row of the append-only movement ledger. Quantities
// are signed: receipts and reversals are positive, consumption and waste
// negative, adjustments either. Rows are never updated or deleted.
type StockMovement struct {
	ID            string    `db:"id" json:"id"`
	ItemID        string    `db:"item_id" json:"item_id"`
	BatchID       *string   `db:"batch_id" json:"batch_id,omitempty"`
	MovementType  string    `db:"movement_type" json:"movement_type"`
	Quantity      int       `db:"quantity" json:"quantity"`
	UnitCostCents int       `db:"unit_cost_cents" json:"unit_cost_cents"`
	ReferenceKind string    `db:"reference_kind" json:"reference_kind"`
	ReferenceID   string    `db:"reference_id" json:"reference_id"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	PerformedBy   string    `db:"performed_by" json:"performed_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// LedgerRepository handles the append-only movement ledger. It exposes
// appends and reads only; the ledger has no update or delete path.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AppendTx appends a movement within tx.
func (r *LedgerRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, m *StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (
			id, item_id, batch_id, movement_type, quantity, unit_cost_cents,
			reference_kind, reference_id, reason, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		m.ID, m.ItemID, m.BatchID, m.MovementType, m.Quantity,
		m.UnitCostCents, m.ReferenceKind, m.ReferenceID, m.Reason, m.PerformedBy,
	).Scan(&m.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListByItem lists movements for an item, newest first
func (r *LedgerRepository) ListByItem(ctx context.Context, itemID string, page, perPage int) ([]*StockMovement, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM stock_movements WHERE item_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, itemID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `
		SELECT * FROM stock_movements
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var movements []*StockMovement
	if err := r.db.SelectContext(ctx, &movements, query, itemID, perPage, offset); err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// ListOutByReferenceTx returns an order's consumption movements that have no
// compensating reversal yet, locking them against concurrent reversals. Used
// when an order is cancelled after partial allocation.
func (r *LedgerRepository) ListOutByReferenceTx(ctx context.Context, tx *sqlx.Tx, orderRef string) ([]*StockMovement, error) {
	query := `
		SELECT m.* FROM stock_movements m
		WHERE m.movement_type = 'out'
		AND m.reference_kind = 'order' AND m.reference_id = $1
		AND NOT EXISTS (
			SELECT 1 FROM stock_movements rev
			WHERE rev.reference_kind = 'reversal' AND rev.reference_id = $1
			AND rev.batch_id = m.batch_id AND rev.quantity = -m.quantity
		)
		ORDER BY m.created_at
		FOR UPDATE OF m
	`

	var movements []*StockMovement
	if err := tx.SelectContext(ctx, &movements, query, orderRef); err != nil {
		return nil, err
	}
	return movements, nil
}

// ConsumptionSince returns the total units consumed (absolute value of out
// movements) per item since the given instant. Feeds the reorder advisor.
func (r *LedgerRepository) ConsumptionSince(ctx context.Context, since time.Time) (map[string]int, error) {
	type row struct {
		ItemID string `db:"item_id"`
		Total  int    `db:"total"`
	}

	query := `
		SELECT item_id, COALESCE(SUM(-quantity), 0) AS total
		FROM stock_movements
		WHERE movement_type = 'out' AND created_at >= $1
		GROUP BY item_id
	`

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, err
	}

	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.ItemID] = r.Total
	}
	return totals, nil
}
