package consumers

import (
	"context"

	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/actor"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/messaging"
)

// OrderEventConsumer consumes order events. A cancelled order triggers a
// compensating reversal of whatever that order had allocated.
type OrderEventConsumer struct {
	consumer    *messaging.Consumer
	allocations *service.AllocationService
	logger      *logger.Logger
}

// NewOrderEventConsumer creates a new order event consumer
func NewOrderEventConsumer(rmq *messaging.RabbitMQ, allocations *service.AllocationService, log *logger.Logger) (*OrderEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.order-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeOrderEvents, "order.#"); err != nil {
		return nil, err
	}

	c := &OrderEventConsumer{
		consumer:    consumer,
		allocations: allocations,
		logger:      log,
	}

	consumer.RegisterHandler(messaging.EventOrderCancelled, c.handleOrderCancelled)

	return c, nil
}

// Start starts consuming messages
func (c *OrderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *OrderEventConsumer) handleOrderCancelled(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderCancelledEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("order_ref", data.OrderRef).
		Str("cancelled_by", data.CancelledBy).
		Msg("received order cancelled event")

	ctx = actor.WithActor(ctx, actor.SystemActor())

	result, err := c.allocations.ReverseAllocation(ctx, data.OrderRef)
	if err != nil {
		return err
	}

	if result.MovementCount == 0 {
		c.logger.Debug().
			Str("order_ref", data.OrderRef).
			Msg("no allocation to reverse for cancelled order")
	}

	return nil
}
