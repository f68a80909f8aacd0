package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Inventory events
	EventStockAllocated     = "inventory.stock.allocated"
	EventStockReceived      = "inventory.stock.received"
	EventStockAdjusted      = "inventory.stock.adjusted"
	EventAllocationReversed = "inventory.allocation.reversed"
	EventBatchExpired       = "inventory.batch.expired"
	EventAlertRaised        = "inventory.alert.raised"
	EventIntegrityViolation = "inventory.integrity.violation"

	// Order events (consumed; published by the order service)
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeOrderEvents     = "order.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Inventory events

// BatchCutPayload describes one batch's share of an allocation.
type BatchCutPayload struct {
	BatchID     string `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

// StockAllocatedEvent is published per order line after a committed allocation
type StockAllocatedEvent struct {
	OrderRef  string            `json:"order_ref"`
	ItemID    string            `json:"item_id"`
	Requested int               `json:"requested"`
	Allocated int               `json:"allocated"`
	Shortfall int               `json:"shortfall"`
	Batches   []BatchCutPayload `json:"batches"`
}

// StockReceivedEvent is published after a purchase order receipt commits
type StockReceivedEvent struct {
	PurchaseOrderID string   `json:"purchase_order_id"`
	SupplierID      string   `json:"supplier_id"`
	BatchIDs        []string `json:"batch_ids"`
	TotalQuantity   int      `json:"total_quantity"`
}

// StockAdjustedEvent is published when a count reconciliation adjusts stock
type StockAdjustedEvent struct {
	SessionID   string `json:"session_id"`
	ItemID      string `json:"item_id"`
	Variance    int    `json:"variance"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
}

// AllocationReversedEvent is published when an order's allocation is re-credited
type AllocationReversedEvent struct {
	OrderRef      string `json:"order_ref"`
	MovementCount int    `json:"movement_count"`
	TotalRestored int    `json:"total_restored"`
}

// BatchExpiredEvent is published when the sweeper retires an expired batch
type BatchExpiredEvent struct {
	ItemID        string `json:"item_id"`
	BatchID       string `json:"batch_id"`
	BatchNumber   string `json:"batch_number"`
	QuantityLost  int    `json:"quantity_lost"`
	ValueLostCents int   `json:"value_lost_cents"`
}

// AlertRaisedEvent is published for critical alerts after a scan
type AlertRaisedEvent struct {
	AlertID   string `json:"alert_id"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	ItemID    string `json:"item_id"`
	BatchID   string `json:"batch_id,omitempty"`
	Message   string `json:"message"`
}

// IntegrityViolationEvent is published when the auditor finds aggregate drift
type IntegrityViolationEvent struct {
	ItemID         string `json:"item_id"`
	AggregateStock int    `json:"aggregate_stock"`
	BatchSum       int    `json:"batch_sum"`
}

// Order events (produced by the order service, consumed here)

// OrderCancelledEvent triggers a compensating reversal of the order's allocation
type OrderCancelledEvent struct {
	OrderRef    string `json:"order_ref"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
