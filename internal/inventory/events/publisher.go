package events

import (
	"context"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events. A nil publisher
// is valid and publishes nothing, which keeps tests and local setups free of
// a broker dependency.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockAllocated publishes a stock allocated event for one order line
func (p *InventoryEventPublisher) PublishStockAllocated(ctx context.Context, data messaging.StockAllocatedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAllocated, data); err != nil {
		p.logger.Error().Err(err).Str("order_ref", data.OrderRef).Str("item_id", data.ItemID).Msg("failed to publish stock allocated event")
	}
}

// PublishStockReceived publishes a stock received event after a receipt commits
func (p *InventoryEventPublisher) PublishStockReceived(ctx context.Context, data messaging.StockReceivedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("purchase_order_id", data.PurchaseOrderID).Msg("failed to publish stock received event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event after reconciliation
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, data messaging.StockAdjustedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", data.ItemID).Msg("failed to publish stock adjusted event")
	}
}

// PublishAllocationReversed publishes an allocation reversed event
func (p *InventoryEventPublisher) PublishAllocationReversed(ctx context.Context, data messaging.AllocationReversedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventAllocationReversed, data); err != nil {
		p.logger.Error().Err(err).Str("order_ref", data.OrderRef).Msg("failed to publish allocation reversed event")
	}
}

// PublishBatchExpired publishes a batch expired event from the sweeper
func (p *InventoryEventPublisher) PublishBatchExpired(ctx context.Context, data messaging.BatchExpiredEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpired, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish batch expired event")
	}
}

// PublishAlertRaised publishes an alert raised event for a scanner finding
func (p *InventoryEventPublisher) PublishAlertRaised(ctx context.Context, alert *repository.StockAlert) {
	if p == nil {
		return
	}

	batchID := ""
	if alert.BatchID != nil {
		batchID = *alert.BatchID
	}

	data := messaging.AlertRaisedEvent{
		AlertID:   alert.ID,
		AlertType: alert.AlertType,
		Severity:  alert.Severity,
		ItemID:    alert.ItemID,
		BatchID:   batchID,
		Message:   alert.Message,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertRaised, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert raised event")
	}
}

// PublishIntegrityViolation publishes an integrity violation found by the auditor
func (p *InventoryEventPublisher) PublishIntegrityViolation(ctx context.Context, data messaging.IntegrityViolationEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventIntegrityViolation, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", data.ItemID).Msg("failed to publish integrity violation event")
	}
}
