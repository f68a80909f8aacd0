package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/internal/inventory/events"
	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/actor"
	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/messaging"
)

// ReceivingService manages purchase orders and turns confirmed deliveries
// into stock batches and ledger entries.
type ReceivingService struct {
	db         *database.DB
	poRepo     *repository.PurchaseOrderRepository
	itemRepo   *repository.ItemRepository
	batchRepo  *repository.BatchRepository
	ledgerRepo *repository.LedgerRepository
	publisher  *events.InventoryEventPublisher
	retry      database.RetryPolicy
	logger     *logger.Logger
}

// NewReceivingService creates a new receiving service
func NewReceivingService(
	db *database.DB,
	poRepo *repository.PurchaseOrderRepository,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	ledgerRepo *repository.LedgerRepository,
	publisher *events.InventoryEventPublisher,
	retry database.RetryPolicy,
	log *logger.Logger,
) *ReceivingService {
	return &ReceivingService{
		db:         db,
		poRepo:     poRepo,
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		retry:      retry,
		logger:     log,
	}
}

// OrderLineRequest is one requested line on a new purchase order
type OrderLineRequest struct {
	ItemID        string `json:"item_id" validate:"required,uuid"`
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
	UnitCostCents int    `json:"unit_cost_cents" validate:"gte=0"`
}

// PurchaseOrderWithLines bundles a purchase order and its lines
type PurchaseOrderWithLines struct {
	*repository.PurchaseOrder
	Lines []*repository.PurchaseOrderLine `json:"lines"`
}

// CreatePurchaseOrder creates a draft purchase order. Every referenced item
// must exist; the draft carries no stock effect.
func (s *ReceivingService) CreatePurchaseOrder(ctx context.Context, supplierID string, notes *string, lineReqs []OrderLineRequest) (*PurchaseOrderWithLines, error) {
	for _, req := range lineReqs {
		if _, err := s.itemRepo.GetByID(ctx, req.ItemID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, errors.Validation(map[string]string{
					"item_id": "unknown item " + req.ItemID,
				})
			}
			return nil, err
		}
	}

	po := &repository.PurchaseOrder{
		SupplierID: supplierID,
		Notes:      notes,
	}

	lines := make([]*repository.PurchaseOrderLine, 0, len(lineReqs))
	for _, req := range lineReqs {
		lines = append(lines, &repository.PurchaseOrderLine{
			ItemID:          req.ItemID,
			QuantityOrdered: req.Quantity,
			UnitCostCents:   req.UnitCostCents,
		})
	}

	if err := s.poRepo.Create(ctx, po, lines); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("purchase_order_id", po.ID).
		Str("supplier_id", supplierID).
		Int("lines", len(lines)).
		Msg("purchase order created")

	return &PurchaseOrderWithLines{PurchaseOrder: po, Lines: lines}, nil
}

// GetPurchaseOrder gets a purchase order with its lines
func (s *ReceivingService) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrderWithLines, error) {
	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.poRepo.ListLines(ctx, id)
	if err != nil {
		return nil, err
	}

	return &PurchaseOrderWithLines{PurchaseOrder: po, Lines: lines}, nil
}

// ListPurchaseOrders lists purchase orders, optionally filtered by status
func (s *ReceivingService) ListPurchaseOrders(ctx context.Context, status string, page, perPage int) ([]*repository.PurchaseOrder, int64, error) {
	return s.poRepo.List(ctx, status, page, perPage)
}

// MarkSent moves a draft purchase order to sent
func (s *ReceivingService) MarkSent(ctx context.Context, id string) error {
	return s.poRepo.UpdateStatus(ctx, id, repository.POStatusDraft, repository.POStatusSent)
}

// MarkConfirmed moves a sent purchase order to confirmed
func (s *ReceivingService) MarkConfirmed(ctx context.Context, id string) error {
	return s.poRepo.UpdateStatus(ctx, id, repository.POStatusSent, repository.POStatusConfirmed)
}

// ReceiptLine is one delivered line at goods-in
type ReceiptLine struct {
	ItemID         string     `json:"item_id" validate:"required,uuid"`
	BatchNumber    string     `json:"batch_number" validate:"required"`
	Quantity       int        `json:"quantity" validate:"required,gt=0"`
	UnitCostCents  int        `json:"unit_cost_cents" validate:"gte=0"`
	ManufacturedAt *time.Time `json:"manufactured_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ReceiptResult summarizes a committed receipt
type ReceiptResult struct {
	PurchaseOrderID string                   `json:"purchase_order_id"`
	Batches         []*repository.StockBatch `json:"batches"`
	TotalQuantity   int                      `json:"total_quantity"`
}

// Receive books a delivery against a purchase order: one batch, one ledger
// entry, and one aggregate bump per line, all in a single transaction. The
// PO row lock makes a second receipt fail with DUPLICATE_RECEIPT instead of
// double-counting stock.
func (s *ReceivingService) Receive(ctx context.Context, poID string, receiptLines []ReceiptLine) (*ReceiptResult, error) {
	result := &ReceiptResult{PurchaseOrderID: poID}
	performedBy := actor.PerformedBy(ctx)

	var supplierID string
	err := s.db.TransactionWithRetry(ctx, s.retry, func(tx *sqlx.Tx) error {
		result.Batches = result.Batches[:0]
		result.TotalQuantity = 0

		po, err := s.poRepo.GetForUpdateTx(ctx, tx, poID)
		if err != nil {
			return err
		}

		if po.Status == repository.POStatusReceived {
			return errors.DuplicateReceipt(poID)
		}
		if po.Status == repository.POStatusCancelled {
			return errors.Conflict("purchase order is cancelled")
		}
		supplierID = po.SupplierID

		now := time.Now().UTC()
		for _, line := range receiptLines {
			batch := &repository.StockBatch{
				ItemID:            line.ItemID,
				BatchNumber:       line.BatchNumber,
				Quantity:          line.Quantity,
				RemainingQuantity: line.Quantity,
				UnitCostCents:     line.UnitCostCents,
				ManufacturedAt:    line.ManufacturedAt,
				ExpiresAt:         line.ExpiresAt,
				ReceivedAt:        now,
				SupplierID:        &po.SupplierID,
				PurchaseOrderID:   &po.ID,
			}
			if err := s.batchRepo.CreateTx(ctx, tx, batch); err != nil {
				return err
			}

			movement := &repository.StockMovement{
				ItemID:        line.ItemID,
				BatchID:       &batch.ID,
				MovementType:  repository.MovementIn,
				Quantity:      line.Quantity,
				UnitCostCents: line.UnitCostCents,
				ReferenceKind: repository.RefPurchaseOrder,
				ReferenceID:   po.ID,
				PerformedBy:   performedBy,
			}
			if err := s.ledgerRepo.AppendTx(ctx, tx, movement); err != nil {
				return err
			}

			if err := s.itemRepo.AddToAggregateTx(ctx, tx, line.ItemID, line.Quantity); err != nil {
				return err
			}

			if err := s.poRepo.AddLineReceivedTx(ctx, tx, po.ID, line.ItemID, line.Quantity); err != nil {
				return err
			}

			result.Batches = append(result.Batches, batch)
			result.TotalQuantity += line.Quantity
		}

		return s.poRepo.MarkReceivedTx(ctx, tx, po.ID)
	})
	if err != nil {
		return nil, err
	}

	batchIDs := make([]string, 0, len(result.Batches))
	for _, b := range result.Batches {
		batchIDs = append(batchIDs, b.ID)
	}

	s.publisher.PublishStockReceived(ctx, messaging.StockReceivedEvent{
		PurchaseOrderID: poID,
		SupplierID:      supplierID,
		BatchIDs:        batchIDs,
		TotalQuantity:   result.TotalQuantity,
	})

	s.logger.Info().
		Str("purchase_order_id", poID).
		Int("batches", len(result.Batches)).
		Int("total_quantity", result.TotalQuantity).
		Msg("purchase order received")

	return result, nil
}
