package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/internal/inventory/events"
	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/actor"
	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/messaging"
)

// ExpirySweeper retires past-expiry batches that still carry stock. The lost
// units leave through the ledger as waste so the books stay balanced.
type ExpirySweeper struct {
	db         *database.DB
	itemRepo   *repository.ItemRepository
	batchRepo  *repository.BatchRepository
	ledgerRepo *repository.LedgerRepository
	publisher  *events.InventoryEventPublisher
	retry      database.RetryPolicy
	logger     *logger.Logger
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	ledgerRepo *repository.LedgerRepository,
	publisher *events.InventoryEventPublisher,
	retry database.RetryPolicy,
	log *logger.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		db:         db,
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		retry:      retry,
		logger:     log,
	}
}

// SweepResult summarizes one sweep run
type SweepResult struct {
	BatchesExpired int `json:"batches_expired"`
	UnitsLost      int `json:"units_lost"`
	ValueLostCents int `json:"value_lost_cents"`
}

// SweepExpired finds active batches whose expiry has passed and retires them
// one item-scoped transaction at a time. A failure on one batch does not
// stop the sweep.
func (s *ExpirySweeper) SweepExpired(ctx context.Context) (*SweepResult, error) {
	expired, err := s.batchRepo.GetExpiredBatches(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	performedBy := actor.PerformedBy(ctx)

	for _, candidate := range expired {
		lost, err := s.sweepBatch(ctx, candidate.ID, performedBy)
		if err != nil {
			s.logger.Error().Err(err).
				Str("batch_id", candidate.ID).
				Str("item_id", candidate.ItemID).
				Msg("failed to sweep expired batch")
			continue
		}
		if lost == nil {
			continue
		}

		result.BatchesExpired++
		result.UnitsLost += lost.QuantityLost
		result.ValueLostCents += lost.ValueLostCents

		s.publisher.PublishBatchExpired(ctx, *lost)
	}

	if result.BatchesExpired > 0 {
		s.logger.Info().
			Int("batches", result.BatchesExpired).
			Int("units_lost", result.UnitsLost).
			Int("value_lost_cents", result.ValueLostCents).
			Msg("expired batches swept")
	}

	return result, nil
}

// sweepBatch retires one batch. Returns nil when another sweep got there
// first or allocation drained the batch in the meantime.
func (s *ExpirySweeper) sweepBatch(ctx context.Context, batchID, performedBy string) (*messaging.BatchExpiredEvent, error) {
	var event *messaging.BatchExpiredEvent

	err := s.db.TransactionWithRetry(ctx, s.retry, func(tx *sqlx.Tx) error {
		event = nil

		batch, err := s.batchRepo.GetForUpdateTx(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != repository.BatchStatusActive || batch.RemainingQuantity == 0 {
			return nil
		}

		if _, err := s.itemRepo.GetForUpdateTx(ctx, tx, batch.ItemID); err != nil {
			return err
		}

		lost := batch.RemainingQuantity
		reason := "expired"

		if err := s.batchRepo.AddRemainingTx(ctx, tx, batch.ID, -lost); err != nil {
			return err
		}
		if err := s.batchRepo.SetStatusTx(ctx, tx, batch.ID, repository.BatchStatusExpired); err != nil {
			return err
		}

		movement := &repository.StockMovement{
			ItemID:        batch.ItemID,
			BatchID:       &batch.ID,
			MovementType:  repository.MovementWaste,
			Quantity:      -lost,
			UnitCostCents: batch.UnitCostCents,
			ReferenceKind: repository.RefSweep,
			ReferenceID:   batch.ID,
			Reason:        &reason,
			PerformedBy:   performedBy,
		}
		if err := s.ledgerRepo.AppendTx(ctx, tx, movement); err != nil {
			return err
		}

		if err := s.itemRepo.AddToAggregateTx(ctx, tx, batch.ItemID, -lost); err != nil {
			return err
		}

		event = &messaging.BatchExpiredEvent{
			ItemID:         batch.ItemID,
			BatchID:        batch.ID,
			BatchNumber:    batch.BatchNumber,
			QuantityLost:   lost,
			ValueLostCents: lost * batch.UnitCostCents,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}
