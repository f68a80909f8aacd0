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

// Count session status values
const (
	CountStatusOpen       = "open"
	CountStatusReconciled = "reconciled"
	CountStatusCancelled  = "cancelled"
)

// StockCountSession is one physical stock-taking round. Counts are recorded
// while the session is open and applied to the ledger when it is reconciled.
type StockCountSession struct {
	ID           string     `db:"id" json:"id"`
	Status       string     `db:"status" json:"status"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	StartedBy    string     `db:"started_by" json:"started_by"`
	ReconciledAt *time.Time `db:"reconciled_at" json:"reconciled_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StockCountItem is one counted item in a session. Variance is computed at
// reconciliation time against the then-current aggregate.
type StockCountItem struct {
	ID              string    `db:"id" json:"id"`
	CountSessionID  string    `db:"count_session_id" json:"count_session_id"`
	ItemID          string    `db:"item_id" json:"item_id"`
	CountedQuantity int       `db:"counted_quantity" json:"counted_quantity"`
	SystemQuantity  *int      `db:"system_quantity" json:"system_quantity,omitempty"`
	Variance        *int      `db:"variance" json:"variance,omitempty"`
	CountedBy       string    `db:"counted_by" json:"counted_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// CountRepository handles stock count session persistence
type CountRepository struct {
	db *database.DB
}

// NewCountRepository creates a new count repository
func NewCountRepository(db *database.DB) *CountRepository {
	return &CountRepository{db: db}
}

// CreateSession opens a new count session
func (r *CountRepository) CreateSession(ctx context.Context, session *StockCountSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = CountStatusOpen
	}

	query := `
		INSERT INTO stock_count_sessions (id, status, notes, started_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		session.ID, session.Status, session.Notes, session.StartedBy,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetSession gets a count session by ID
func (r *CountRepository) GetSession(ctx context.Context, id string) (*StockCountSession, error) {
	var session StockCountSession
	query := `SELECT * FROM stock_count_sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("count session")
		}
		return nil, err
	}
	return &session, nil
}

// RecordCount records a counted quantity for an item in an open session.
// Counting the same item twice replaces the earlier figure.
func (r *CountRepository) RecordCount(ctx context.Context, count *StockCountItem) error {
	if count.ID == "" {
		count.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_count_items (id, count_session_id, item_id, counted_quantity, counted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (count_session_id, item_id) DO UPDATE SET
			counted_quantity = EXCLUDED.counted_quantity,
			counted_by = EXCLUDED.counted_by
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		count.ID, count.CountSessionID, count.ItemID,
		count.CountedQuantity, count.CountedBy,
	).Scan(&count.ID, &count.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListCounts lists the counted items of a session
func (r *CountRepository) ListCounts(ctx context.Context, sessionID string) ([]*StockCountItem, error) {
	var counts []*StockCountItem
	query := `SELECT * FROM stock_count_items WHERE count_session_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &counts, query, sessionID); err != nil {
		return nil, err
	}
	return counts, nil
}

// Transactional variants used by the reconciler.

// GetSessionForUpdateTx locks and returns the session row within tx. The
// lock makes reconciled-exactly-once race-free.
func (r *CountRepository) GetSessionForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*StockCountSession, error) {
	var session StockCountSession
	query := `SELECT * FROM stock_count_sessions WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("count session")
		}
		return nil, err
	}
	return &session, nil
}

// ListCountsTx lists the counted items of a session within tx.
func (r *CountRepository) ListCountsTx(ctx context.Context, tx *sqlx.Tx, sessionID string) ([]*StockCountItem, error) {
	var counts []*StockCountItem
	query := `SELECT * FROM stock_count_items WHERE count_session_id = $1 ORDER BY created_at`
	if err := tx.SelectContext(ctx, &counts, query, sessionID); err != nil {
		return nil, err
	}
	return counts, nil
}

// SetVarianceTx stores the system quantity and variance computed at
// reconciliation time on a counted item row.
func (r *CountRepository) SetVarianceTx(ctx context.Context, tx *sqlx.Tx, id string, systemQty, variance int) error {
	query := `UPDATE stock_count_items SET system_quantity = $2, variance = $3 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, systemQty, variance)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("count item")
	}

	return nil
}

// MarkReconciledTx transitions the session to reconciled within tx.
func (r *CountRepository) MarkReconciledTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	query := `UPDATE stock_count_sessions SET status = 'reconciled', reconciled_at = NOW(), updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("count session")
	}

	return nil
}
