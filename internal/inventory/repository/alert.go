package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/errors"
)

// Alert types. The first four are recomputed by the scanner each run; the
// integrity type is owned by the auditor.
const (
	AlertLowStock           = "low_stock"
	AlertOutOfStock         = "out_of_stock"
	AlertExpiringSoon       = "expiring_soon"
	AlertExpired            = "expired"
	AlertIntegrityViolation = "integrity_violation"
)

// Alert severities
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// StockAlert is one scanner finding. Identity is (item_id, alert_type,
// batch_id): the scanner replaces the whole set each run and acknowledgement
// survives only while the underlying condition persists.
type StockAlert struct {
	ID             string     `db:"id" json:"id"`
	ItemID         string     `db:"item_id" json:"item_id"`
	BatchID        *string    `db:"batch_id" json:"batch_id,omitempty"`
	AlertType      string     `db:"alert_type" json:"alert_type"`
	Severity       string     `db:"severity" json:"severity"`
	Message        string     `db:"message" json:"message"`
	Acknowledged   bool       `db:"acknowledged" json:"acknowledged"`
	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// AlertRepository handles stock alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// ReplaceAllTx swaps the scanner's alert set within tx: clears the
// scanner-owned types, then inserts the new findings, carrying
// acknowledgements over for findings with the same identity. The auditor's
// integrity findings are left untouched.
func (r *AlertRepository) ReplaceAllTx(ctx context.Context, tx *sqlx.Tx, alerts []*StockAlert) error {
	type acked struct {
		ItemID         string     `db:"item_id"`
		BatchID        *string    `db:"batch_id"`
		AlertType      string     `db:"alert_type"`
		AcknowledgedBy *string    `db:"acknowledged_by"`
		AcknowledgedAt *time.Time `db:"acknowledged_at"`
	}

	var ackedRows []acked
	ackQuery := `SELECT item_id, batch_id, alert_type, acknowledged_by, acknowledged_at FROM stock_alerts WHERE acknowledged = true`
	if err := tx.SelectContext(ctx, &ackedRows, ackQuery); err != nil {
		return err
	}

	ackKey := func(itemID string, batchID *string, alertType string) string {
		key := itemID + "|" + alertType + "|"
		if batchID != nil {
			key += *batchID
		}
		return key
	}

	ackedByKey := make(map[string]acked, len(ackedRows))
	for _, a := range ackedRows {
		ackedByKey[ackKey(a.ItemID, a.BatchID, a.AlertType)] = a
	}

	deleteQuery := `
		DELETE FROM stock_alerts
		WHERE alert_type IN ('low_stock', 'out_of_stock', 'expiring_soon', 'expired')
	`
	if _, err := tx.ExecContext(ctx, deleteQuery); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO stock_alerts (
			id, item_id, batch_id, alert_type, severity, message,
			acknowledged, acknowledged_by, acknowledged_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	for _, alert := range alerts {
		if alert.ID == "" {
			alert.ID = uuid.New().String()
		}

		if prev, ok := ackedByKey[ackKey(alert.ItemID, alert.BatchID, alert.AlertType)]; ok {
			alert.Acknowledged = true
			alert.AcknowledgedBy = prev.AcknowledgedBy
			alert.AcknowledgedAt = prev.AcknowledgedAt
		}

		err := tx.QueryRowxContext(ctx, insertQuery,
			alert.ID, alert.ItemID, alert.BatchID, alert.AlertType,
			alert.Severity, alert.Message, alert.Acknowledged,
			alert.AcknowledgedBy, alert.AcknowledgedAt,
		).Scan(&alert.CreatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
	}

	return nil
}

// UpsertTx inserts or refreshes a single alert by its identity within tx.
// Used by the integrity auditor, which adds findings without touching the
// rest of the alert set.
func (r *AlertRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, alert *StockAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_alerts (id, item_id, batch_id, alert_type, severity, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT stock_alerts_alert_identity DO UPDATE SET
			severity = EXCLUDED.severity,
			message = EXCLUDED.message
		RETURNING id, created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		alert.ID, alert.ItemID, alert.BatchID, alert.AlertType,
		alert.Severity, alert.Message,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List lists alerts filtered by type and severity, most severe first
func (r *AlertRepository) List(ctx context.Context, alertType, severity string, unacknowledgedOnly bool) ([]*StockAlert, error) {
	query := `SELECT * FROM stock_alerts WHERE 1=1`
	args := []interface{}{}

	if alertType != "" {
		args = append(args, alertType)
		query += ` AND alert_type = $1`
	}
	if severity != "" {
		args = append(args, severity)
		if len(args) == 1 {
			query += ` AND severity = $1`
		} else {
			query += ` AND severity = $2`
		}
	}
	if unacknowledgedOnly {
		query += ` AND acknowledged = false`
	}

	query += `
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			ELSE 2
		END, created_at DESC
	`

	var alerts []*StockAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Acknowledge marks an alert acknowledged by the given actor
func (r *AlertRepository) Acknowledge(ctx context.Context, id, actorID string) error {
	query := `
		UPDATE stock_alerts SET
			acknowledged = true, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, actorID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}

	return nil
}
