package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kioskly/kiosk-backend/internal/inventory/events"
	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/messaging"
)

// IntegrityAuditor verifies that every item's cached aggregate stock matches
// the sum of its active batch remainders. It reports drift but never repairs
// it; a human decides what the correct figure is.
type IntegrityAuditor struct {
	db        *database.DB
	itemRepo  *repository.ItemRepository
	batchRepo *repository.BatchRepository
	alertRepo *repository.AlertRepository
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
}

// NewIntegrityAuditor creates a new integrity auditor
func NewIntegrityAuditor(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *IntegrityAuditor {
	return &IntegrityAuditor{
		db:        db,
		itemRepo:  itemRepo,
		batchRepo: batchRepo,
		alertRepo: alertRepo,
		publisher: publisher,
		logger:    log,
	}
}

// Violation is one detected aggregate drift
type Violation struct {
	ItemID         string `json:"item_id"`
	SKU            string `json:"sku"`
	AggregateStock int    `json:"aggregate_stock"`
	BatchSum       int    `json:"batch_sum"`
}

// Audit checks every active item and returns the violations found
func (a *IntegrityAuditor) Audit(ctx context.Context) ([]Violation, error) {
	items, err := a.itemRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	violations := make([]Violation, 0)
	for _, item := range items {
		batchSum, err := a.batchRepo.SumActiveRemaining(ctx, item.ID)
		if err != nil {
			return nil, err
		}

		if item.AggregateStock == batchSum {
			continue
		}

		violations = append(violations, Violation{
			ItemID:         item.ID,
			SKU:            item.SKU,
			AggregateStock: item.AggregateStock,
			BatchSum:       batchSum,
		})

		a.logger.Error().
			Err(errors.IntegrityViolation(item.ID, item.AggregateStock, batchSum)).
			Str("sku", item.SKU).
			Msg("stock integrity violation detected")

		a.publisher.PublishIntegrityViolation(ctx, messaging.IntegrityViolationEvent{
			ItemID:         item.ID,
			AggregateStock: item.AggregateStock,
			BatchSum:       batchSum,
		})
	}

	if len(violations) > 0 {
		if err := a.raiseAlerts(ctx, items, violations); err != nil {
			a.logger.Error().Err(err).Msg("failed to store integrity alerts")
		}
	}

	return violations, nil
}

// raiseAlerts records one critical alert per violating item. These ride on
// the regular alert table so they surface in the same dashboard.
func (a *IntegrityAuditor) raiseAlerts(ctx context.Context, items []*repository.InventoryItem, violations []Violation) error {
	names := make(map[string]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}

	return a.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, v := range violations {
			alert := &repository.StockAlert{
				ItemID:    v.ItemID,
				AlertType: repository.AlertIntegrityViolation,
				Severity:  repository.SeverityCritical,
				Message: fmt.Sprintf(
					"%s aggregate stock %d does not match active batch sum %d",
					names[v.ItemID], v.AggregateStock, v.BatchSum,
				),
			}
			if err := a.alertRepo.UpsertTx(ctx, tx, alert); err != nil {
				return err
			}
		}
		return nil
	})
}
