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

// CountService runs physical stock counts and reconciles their variances
// into the ledger.
type CountService struct {
	db         *database.DB
	countRepo  *repository.CountRepository
	itemRepo   *repository.ItemRepository
	batchRepo  *repository.BatchRepository
	ledgerRepo *repository.LedgerRepository
	publisher  *events.InventoryEventPublisher
	retry      database.RetryPolicy
	logger     *logger.Logger
}

// NewCountService creates a new count service
func NewCountService(
	db *database.DB,
	countRepo *repository.CountRepository,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	ledgerRepo *repository.LedgerRepository,
	publisher *events.InventoryEventPublisher,
	retry database.RetryPolicy,
	log *logger.Logger,
) *CountService {
	return &CountService{
		db:         db,
		countRepo:  countRepo,
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		retry:      retry,
		logger:     log,
	}
}

// CreateSession opens a new count session
func (s *CountService) CreateSession(ctx context.Context, notes *string) (*repository.StockCountSession, error) {
	session := &repository.StockCountSession{
		Notes:     notes,
		StartedBy: actor.PerformedBy(ctx),
	}
	if err := s.countRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CountEntry is one counted figure submitted for a session
type CountEntry struct {
	ItemID          string `json:"item_id" validate:"required,uuid"`
	CountedQuantity int    `json:"counted_quantity" validate:"gte=0"`
}

// RecordCount records one counted figure in an open session
func (s *CountService) RecordCount(ctx context.Context, sessionID string, entry CountEntry) error {
	session, err := s.countRepo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != repository.CountStatusOpen {
		return errors.Conflict("count session is " + session.Status)
	}

	return s.countRepo.RecordCount(ctx, &repository.StockCountItem{
		CountSessionID:  sessionID,
		ItemID:          entry.ItemID,
		CountedQuantity: entry.CountedQuantity,
		CountedBy:       actor.PerformedBy(ctx),
	})
}

// VarianceRecord is the reconciliation outcome for one counted item
type VarianceRecord struct {
	ItemID            string `json:"item_id"`
	CountedQuantity   int    `json:"counted_quantity"`
	SystemQuantity    int    `json:"system_quantity"`
	Variance          int    `json:"variance"`
	VarianceCostCents int    `json:"variance_cost_cents"`
}

// batchDeduction is one batch's share of a negative variance
type batchDeduction struct {
	BatchID  string
	Quantity int
}

// planVarianceDeduction distributes a shrinkage variance across batches in
// the order given (soonest expiry first), mirroring how the missing stock
// would have been consumed. The deficit may exceed the batch sum when the
// cached aggregate has drifted; whatever cannot be mapped to a batch is left
// to the batchless adjustment movement.
func planVarianceDeduction(batches []*repository.StockBatch, deficit int) []batchDeduction {
	deductions := make([]batchDeduction, 0, len(batches))
	remaining := deficit

	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := batch.RemainingQuantity
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		deductions = append(deductions, batchDeduction{BatchID: batch.ID, Quantity: take})
		remaining -= take
	}

	return deductions
}

// weightedAvgUnitCost returns the remaining-weighted average unit cost of the
// given batches, falling back to fallbackCents when they hold nothing.
func weightedAvgUnitCost(batches []*repository.StockBatch, fallbackCents int) int {
	totalQty := 0
	totalCost := 0
	for _, b := range batches {
		totalQty += b.RemainingQuantity
		totalCost += b.RemainingQuantity * b.UnitCostCents
	}
	if totalQty == 0 {
		return fallbackCents
	}
	return totalCost / totalQty
}

// Reconcile applies a session's counted figures to stock in one transaction.
// Shrinkage is deducted from batches soonest-expiry-first; surplus becomes a
// dedicated adjustment batch so the batch sum keeps matching the aggregate.
// The session row lock makes reconciliation happen exactly once.
func (s *CountService) Reconcile(ctx context.Context, sessionID string) ([]VarianceRecord, error) {
	performedBy := actor.PerformedBy(ctx)
	var records []VarianceRecord

	err := s.db.TransactionWithRetry(ctx, s.retry, func(tx *sqlx.Tx) error {
		records = records[:0]

		session, err := s.countRepo.GetSessionForUpdateTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != repository.CountStatusOpen {
			return errors.Conflict("count session is already " + session.Status)
		}

		counts, err := s.countRepo.ListCountsTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		for _, count := range counts {
			record, err := s.reconcileItem(ctx, tx, session, count, performedBy)
			if err != nil {
				return err
			}
			records = append(records, *record)
		}

		return s.countRepo.MarkReconciledTx(ctx, tx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Variance == 0 {
			continue
		}
		s.publisher.PublishStockAdjusted(ctx, messaging.StockAdjustedEvent{
			SessionID:   sessionID,
			ItemID:      record.ItemID,
			Variance:    record.Variance,
			NewQuantity: record.CountedQuantity,
			PerformedBy: performedBy,
		})
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("items", len(records)).
		Msg("count session reconciled")

	return records, nil
}

func (s *CountService) reconcileItem(ctx context.Context, tx *sqlx.Tx, session *repository.StockCountSession, count *repository.StockCountItem, performedBy string) (*VarianceRecord, error) {
	item, err := s.itemRepo.GetForUpdateTx(ctx, tx, count.ItemID)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListActiveForUpdateTx(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}

	variance := count.CountedQuantity - item.AggregateStock
	avgCost := weightedAvgUnitCost(batches, item.CostPriceCents)

	record := &VarianceRecord{
		ItemID:            item.ID,
		CountedQuantity:   count.CountedQuantity,
		SystemQuantity:    item.AggregateStock,
		Variance:          variance,
		VarianceCostCents: variance * avgCost,
	}

	if err := s.countRepo.SetVarianceTx(ctx, tx, count.ID, item.AggregateStock, variance); err != nil {
		return nil, err
	}

	if variance == 0 {
		return record, nil
	}

	reason := "stock count reconciliation"
	if variance < 0 {
		deductions := planVarianceDeduction(batches, -variance)

		mapped := 0
		for _, d := range deductions {
			if err := s.batchRepo.AddRemainingTx(ctx, tx, d.BatchID, -d.Quantity); err != nil {
				return nil, err
			}

			batchID := d.BatchID
			movement := &repository.StockMovement{
				ItemID:        item.ID,
				BatchID:       &batchID,
				MovementType:  repository.MovementAdjustment,
				Quantity:      -d.Quantity,
				UnitCostCents: unitCostOf(batches, d.BatchID),
				ReferenceKind: repository.RefCountSession,
				ReferenceID:   session.ID,
				Reason:        &reason,
				PerformedBy:   performedBy,
			}
			if err := s.ledgerRepo.AppendTx(ctx, tx, movement); err != nil {
				return nil, err
			}
			mapped += d.Quantity
		}

		// Drift beyond the batch sum cannot be pinned to a batch.
		if unmapped := -variance - mapped; unmapped > 0 {
			movement := &repository.StockMovement{
				ItemID:        item.ID,
				MovementType:  repository.MovementAdjustment,
				Quantity:      -unmapped,
				UnitCostCents: avgCost,
				ReferenceKind: repository.RefCountSession,
				ReferenceID:   session.ID,
				Reason:        &reason,
				PerformedBy:   performedBy,
			}
			if err := s.ledgerRepo.AppendTx(ctx, tx, movement); err != nil {
				return nil, err
			}
		}
	} else {
		now := time.Now().UTC()
		adjBatch := &repository.StockBatch{
			ItemID:            item.ID,
			BatchNumber:       "ADJ-" + session.ID,
			Quantity:          variance,
			RemainingQuantity: variance,
			UnitCostCents:     avgCost,
			ReceivedAt:        now,
		}
		if err := s.batchRepo.CreateTx(ctx, tx, adjBatch); err != nil {
			return nil, err
		}

		movement := &repository.StockMovement{
			ItemID:        item.ID,
			BatchID:       &adjBatch.ID,
			MovementType:  repository.MovementAdjustment,
			Quantity:      variance,
			UnitCostCents: avgCost,
			ReferenceKind: repository.RefCountSession,
			ReferenceID:   session.ID,
			Reason:        &reason,
			PerformedBy:   performedBy,
		}
		if err := s.ledgerRepo.AppendTx(ctx, tx, movement); err != nil {
			return nil, err
		}
	}

	if err := s.itemRepo.AddToAggregateTx(ctx, tx, item.ID, variance); err != nil {
		return nil, err
	}

	return record, nil
}

// GetSession gets a count session with its counted items
func (s *CountService) GetSession(ctx context.Context, sessionID string) (*repository.StockCountSession, []*repository.StockCountItem, error) {
	session, err := s.countRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	counts, err := s.countRepo.ListCounts(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	return session, counts, nil
}
