package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/internal/inventory/events"
	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// AlertScanner recomputes the full alert set from current stock state. Each
// scan derives the same alerts for the same state, so repeated runs are
// harmless; acknowledgements survive while the underlying condition lasts.
type AlertScanner struct {
	db                 *database.DB
	itemRepo           *repository.ItemRepository
	batchRepo          *repository.BatchRepository
	alertRepo          *repository.AlertRepository
	publisher          *events.InventoryEventPublisher
	expiryWarningDays  int
	expiryCriticalDays int
	logger             *logger.Logger
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.InventoryEventPublisher,
	expiryWarningDays, expiryCriticalDays int,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		db:                 db,
		itemRepo:           itemRepo,
		batchRepo:          batchRepo,
		alertRepo:          alertRepo,
		publisher:          publisher,
		expiryWarningDays:  expiryWarningDays,
		expiryCriticalDays: expiryCriticalDays,
		logger:             log,
	}
}

// classifyStockLevel maps an item's aggregate stock to an alert, or nil when
// the level is healthy.
func classifyStockLevel(item *repository.InventoryItem) *repository.StockAlert {
	switch {
	case item.AggregateStock == 0:
		return &repository.StockAlert{
			ItemID:    item.ID,
			AlertType: repository.AlertOutOfStock,
			Severity:  repository.SeverityCritical,
			Message:   fmt.Sprintf("%s (%s) is out of stock", item.Name, item.SKU),
		}
	case item.AggregateStock <= item.MinStock:
		return &repository.StockAlert{
			ItemID:    item.ID,
			AlertType: repository.AlertLowStock,
			Severity:  repository.SeverityHigh,
			Message:   fmt.Sprintf("%s (%s) is below minimum stock: %d of %d", item.Name, item.SKU, item.AggregateStock, item.MinStock),
		}
	case item.AggregateStock <= item.ReorderLevel:
		return &repository.StockAlert{
			ItemID:    item.ID,
			AlertType: repository.AlertLowStock,
			Severity:  repository.SeverityMedium,
			Message:   fmt.Sprintf("%s (%s) reached reorder level: %d of %d", item.Name, item.SKU, item.AggregateStock, item.ReorderLevel),
		}
	default:
		return nil
	}
}

// classifyBatchExpiry maps a batch's expiry to an alert, or nil when the
// batch needs none. warningDays and criticalDays bound the expiring_soon
// window and its severity split.
func classifyBatchExpiry(batch *repository.StockBatch, itemName string, now time.Time, warningDays, criticalDays int) *repository.StockAlert {
	if batch.ExpiresAt == nil || batch.RemainingQuantity == 0 || batch.Status != repository.BatchStatusActive {
		return nil
	}

	batchID := batch.ID
	if !batch.ExpiresAt.After(now) {
		return &repository.StockAlert{
			ItemID:    batch.ItemID,
			BatchID:   &batchID,
			AlertType: repository.AlertExpired,
			Severity:  repository.SeverityCritical,
			Message:   fmt.Sprintf("batch %s of %s expired on %s with %d units remaining", batch.BatchNumber, itemName, batch.ExpiresAt.Format("2006-01-02"), batch.RemainingQuantity),
		}
	}

	daysLeft := int(batch.ExpiresAt.Sub(now).Hours() / 24)
	if daysLeft >= warningDays {
		return nil
	}

	severity := repository.SeverityMedium
	if daysLeft < criticalDays {
		severity = repository.SeverityHigh
	}

	return &repository.StockAlert{
		ItemID:    batch.ItemID,
		BatchID:   &batchID,
		AlertType: repository.AlertExpiringSoon,
		Severity:  severity,
		Message:   fmt.Sprintf("batch %s of %s expires on %s (%d units remaining)", batch.BatchNumber, itemName, batch.ExpiresAt.Format("2006-01-02"), batch.RemainingQuantity),
	}
}

// Scan recomputes and replaces the alert set in one transaction, then
// publishes the critical findings.
func (s *AlertScanner) Scan(ctx context.Context) error {
	items, err := s.itemRepo.GetAllActive(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	alerts := make([]*repository.StockAlert, 0)

	itemNames := make(map[string]string, len(items))
	for _, item := range items {
		itemNames[item.ID] = item.Name

		if alert := classifyStockLevel(item); alert != nil {
			alerts = append(alerts, alert)
		}

		batches, err := s.batchRepo.ListByItem(ctx, item.ID)
		if err != nil {
			return err
		}
		for _, batch := range batches {
			if alert := classifyBatchExpiry(batch, item.Name, now, s.expiryWarningDays, s.expiryCriticalDays); alert != nil {
				alerts = append(alerts, alert)
			}
		}
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.alertRepo.ReplaceAllTx(ctx, tx, alerts)
	})
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		if alert.Severity == repository.SeverityCritical {
			s.publisher.PublishAlertRaised(ctx, alert)
		}
	}

	s.logger.Info().
		Int("items_scanned", len(items)).
		Int("alerts", len(alerts)).
		Msg("alert scan completed")

	return nil
}

// ListAlerts lists current alerts with optional filters
func (s *AlertScanner) ListAlerts(ctx context.Context, alertType, severity string, unacknowledgedOnly bool) ([]*repository.StockAlert, error) {
	return s.alertRepo.List(ctx, alertType, severity, unacknowledgedOnly)
}

// AcknowledgeAlert marks an alert acknowledged by the given actor
func (s *AlertScanner) AcknowledgeAlert(ctx context.Context, alertID, actorID string) error {
	return s.alertRepo.Acknowledge(ctx, alertID, actorID)
}
