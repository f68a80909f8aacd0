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

// AllocationService fulfills order lines against stock batches. Batches are
// consumed soonest-expiry-first, nil expiry last, oldest receipt breaking
// ties. A request the stock cannot cover yields a shortfall, not an error.
type AllocationService struct {
	db         *database.DB
	itemRepo   *repository.ItemRepository
	batchRepo  *repository.BatchRepository
	ledgerRepo *repository.LedgerRepository
	publisher  *events.InventoryEventPublisher
	retry      database.RetryPolicy
	logger     *logger.Logger
}

// NewAllocationService creates a new allocation service
func NewAllocationService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	ledgerRepo *repository.LedgerRepository,
	publisher *events.InventoryEventPublisher,
	retry database.RetryPolicy,
	log *logger.Logger,
) *AllocationService {
	return &AllocationService{
		db:         db,
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		retry:      retry,
		logger:     log,
	}
}

// AllocationLine is one requested order line
type AllocationLine struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// BatchCut is one batch's contribution to a line allocation
type BatchCut struct {
	BatchID     string `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

// LineResult is the outcome of allocating one order line
type LineResult struct {
	ItemID    string     `json:"item_id"`
	Requested int        `json:"requested"`
	Allocated int        `json:"allocated"`
	Shortfall int        `json:"shortfall"`
	Batches   []BatchCut `json:"batches"`
}

// planAllocation walks batches in the order the repository returns them and
// decides each batch's cut. Batches whose expiry has already passed are
// skipped; the sweeper retires them separately. Pure so the walk order and
// edge cases are testable without a database.
func planAllocation(batches []*repository.StockBatch, requested int, now time.Time) []BatchCut {
	cuts := make([]BatchCut, 0, len(batches))
	needed := requested

	for _, batch := range batches {
		if needed == 0 {
			break
		}
		if batch.ExpiresAt != nil && !batch.ExpiresAt.After(now) {
			continue
		}

		take := batch.RemainingQuantity
		if take > needed {
			take = needed
		}
		if take == 0 {
			continue
		}

		cuts = append(cuts, BatchCut{
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			Quantity:    take,
		})
		needed -= take
	}

	return cuts
}

// Allocate fulfills the given order lines. Each line commits in its own
// item-scoped transaction; a shortfall on one line does not block others.
func (s *AllocationService) Allocate(ctx context.Context, orderRef string, lines []AllocationLine) ([]LineResult, error) {
	results := make([]LineResult, 0, len(lines))
	performedBy := actor.PerformedBy(ctx)

	for _, line := range lines {
		result, err := s.allocateLine(ctx, orderRef, line, performedBy)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)

		s.publisher.PublishStockAllocated(ctx, messaging.StockAllocatedEvent{
			OrderRef:  orderRef,
			ItemID:    result.ItemID,
			Requested: result.Requested,
			Allocated: result.Allocated,
			Shortfall: result.Shortfall,
			Batches:   toBatchPayloads(result.Batches),
		})
	}

	return results, nil
}

func (s *AllocationService) allocateLine(ctx context.Context, orderRef string, line AllocationLine, performedBy string) (*LineResult, error) {
	result := &LineResult{
		ItemID:    line.ItemID,
		Requested: line.Quantity,
	}

	err := s.db.TransactionWithRetry(ctx, s.retry, func(tx *sqlx.Tx) error {
		item, err := s.itemRepo.GetForUpdateTx(ctx, tx, line.ItemID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errors.Validation(map[string]string{
					"item_id": "unknown item " + line.ItemID,
				})
			}
			return err
		}

		batches, err := s.batchRepo.ListActiveForUpdateTx(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		cuts := planAllocation(batches, line.Quantity, time.Now().UTC())

		allocated := 0
		for _, cut := range cuts {
			if err := s.batchRepo.AddRemainingTx(ctx, tx, cut.BatchID, -cut.Quantity); err != nil {
				return err
			}

			batchID := cut.BatchID
			movement := &repository.StockMovement{
				ItemID:        item.ID,
				BatchID:       &batchID,
				MovementType:  repository.MovementOut,
				Quantity:      -cut.Quantity,
				UnitCostCents: unitCostOf(batches, cut.BatchID),
				ReferenceKind: repository.RefOrder,
				ReferenceID:   orderRef,
				PerformedBy:   performedBy,
			}
			if err := s.ledgerRepo.AppendTx(ctx, tx, movement); err != nil {
				return err
			}

			allocated += cut.Quantity
		}

		if allocated > 0 {
			if err := s.itemRepo.AddToAggregateTx(ctx, tx, item.ID, -allocated); err != nil {
				return err
			}
		}

		result.Allocated = allocated
		result.Shortfall = line.Quantity - allocated
		result.Batches = cuts
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Shortfall > 0 {
		s.logger.Warn().
			Str("order_ref", orderRef).
			Str("item_id", line.ItemID).
			Int("requested", result.Requested).
			Int("allocated", result.Allocated).
			Int("shortfall", result.Shortfall).
			Msg("order line partially fulfilled")
	}

	return result, nil
}

// ReversalResult summarizes a compensating reversal
type ReversalResult struct {
	OrderRef      string `json:"order_ref"`
	MovementCount int    `json:"movement_count"`
	TotalRestored int    `json:"total_restored"`
	TotalWasted   int    `json:"total_wasted"`
}

// ReverseAllocation credits an order's consumption back to the exact batches
// it came from. A batch that was retired while the order was open gets no
// credit: its returned units are not sellable, so they leave again as waste.
// Safe to call more than once: already-reversed movements are filtered out,
// so a repeat run restores nothing.
func (s *AllocationService) ReverseAllocation(ctx context.Context, orderRef string) (*ReversalResult, error) {
	result := &ReversalResult{OrderRef: orderRef}
	performedBy := actor.PerformedBy(ctx)

	err := s.db.TransactionWithRetry(ctx, s.retry, func(tx *sqlx.Tx) error {
		result.MovementCount = 0
		result.TotalRestored = 0
		result.TotalWasted = 0

		movements, err := s.ledgerRepo.ListOutByReferenceTx(ctx, tx, orderRef)
		if err != nil {
			return err
		}

		restoredByItem := make(map[string]int)
		for _, m := range movements {
			qty := -m.Quantity // out movements are negative

			restorable := true
			if m.BatchID != nil {
				batch, err := s.batchRepo.GetForUpdateTx(ctx, tx, *m.BatchID)
				if err != nil {
					return err
				}
				restorable = batch.Status == repository.BatchStatusActive ||
					batch.Status == repository.BatchStatusConsumed
				if restorable {
					if err := s.batchRepo.AddRemainingTx(ctx, tx, *m.BatchID, qty); err != nil {
						return err
					}
				}
			}

			reversal := &repository.StockMovement{
				ItemID:        m.ItemID,
				BatchID:       m.BatchID,
				MovementType:  repository.MovementIn,
				Quantity:      qty,
				UnitCostCents: m.UnitCostCents,
				ReferenceKind: repository.RefReversal,
				ReferenceID:   orderRef,
				PerformedBy:   performedBy,
			}
			if err := s.ledgerRepo.AppendTx(ctx, tx, reversal); err != nil {
				return err
			}

			if restorable {
				restoredByItem[m.ItemID] += qty
				result.TotalRestored += qty
			} else {
				reason := "batch retired before return"
				waste := &repository.StockMovement{
					ItemID:        m.ItemID,
					BatchID:       m.BatchID,
					MovementType:  repository.MovementWaste,
					Quantity:      -qty,
					UnitCostCents: m.UnitCostCents,
					ReferenceKind: repository.RefReversal,
					ReferenceID:   orderRef,
					Reason:        &reason,
					PerformedBy:   performedBy,
				}
				if err := s.ledgerRepo.AppendTx(ctx, tx, waste); err != nil {
					return err
				}
				result.TotalWasted += qty
			}
			result.MovementCount++
		}

		for itemID, restored := range restoredByItem {
			if err := s.itemRepo.AddToAggregateTx(ctx, tx, itemID, restored); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.MovementCount > 0 {
		s.publisher.PublishAllocationReversed(ctx, messaging.AllocationReversedEvent{
			OrderRef:      orderRef,
			MovementCount: result.MovementCount,
			TotalRestored: result.TotalRestored,
		})

		s.logger.Info().
			Str("order_ref", orderRef).
			Int("movements", result.MovementCount).
			Int("restored", result.TotalRestored).
			Int("wasted", result.TotalWasted).
			Msg("allocation reversed")
	}

	return result, nil
}

func unitCostOf(batches []*repository.StockBatch, batchID string) int {
	for _, b := range batches {
		if b.ID == batchID {
			return b.UnitCostCents
		}
	}
	return 0
}

func toBatchPayloads(cuts []BatchCut) []messaging.BatchCutPayload {
	payloads := make([]messaging.BatchCutPayload, 0, len(cuts))
	for _, c := range cuts {
		payloads = append(payloads, messaging.BatchCutPayload{
			BatchID:     c.BatchID,
			BatchNumber: c.BatchNumber,
			Quantity:    c.Quantity,
		})
	}
	return payloads
}
