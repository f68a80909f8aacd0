package service

import (
	"context"
	"math"
	"time"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// ReorderAdvisor suggests replenishment quantities from trailing consumption.
// Read-only: suggestions never mutate stock or create purchase orders.
type ReorderAdvisor struct {
	itemRepo       *repository.ItemRepository
	ledgerRepo     *repository.LedgerRepository
	windowDays     int
	logger         *logger.Logger
}

// NewReorderAdvisor creates a new reorder advisor
func NewReorderAdvisor(
	itemRepo *repository.ItemRepository,
	ledgerRepo *repository.LedgerRepository,
	windowDays int,
	log *logger.Logger,
) *ReorderAdvisor {
	return &ReorderAdvisor{
		itemRepo:   itemRepo,
		ledgerRepo: ledgerRepo,
		windowDays: windowDays,
		logger:     log,
	}
}

// ReorderSuggestion is one item's replenishment advice
type ReorderSuggestion struct {
	ItemID            string   `json:"item_id"`
	SKU               string   `json:"sku"`
	Name              string   `json:"name"`
	CurrentStock      int      `json:"current_stock"`
	ReorderLevel      int      `json:"reorder_level"`
	AvgDailyUsage     float64  `json:"avg_daily_usage"`
	DaysOfStock       *float64 `json:"days_of_stock,omitempty"`
	SuggestedQuantity int      `json:"suggested_quantity"`
	Priority          string   `json:"priority"`
}

// buildSuggestion computes the advice for one item given its trailing
// consumption. DaysOfStock stays nil when nothing was consumed in the
// window; a zero rate gives no meaningful runway.
func buildSuggestion(item *repository.InventoryItem, consumed, windowDays int) ReorderSuggestion {
	avgDaily := float64(consumed) / float64(windowDays)

	suggestion := ReorderSuggestion{
		ItemID:        item.ID,
		SKU:           item.SKU,
		Name:          item.Name,
		CurrentStock:  item.AggregateStock,
		ReorderLevel:  item.ReorderLevel,
		AvgDailyUsage: avgDaily,
	}

	if avgDaily > 0 {
		days := float64(item.AggregateStock) / avgDaily
		suggestion.DaysOfStock = &days
	}

	suggested := item.ReorderQuantity
	if demand := int(math.Ceil(avgDaily*float64(windowDays))) + item.ReorderLevel; demand > suggested {
		suggested = demand
	}
	suggestion.SuggestedQuantity = suggested

	switch {
	case item.AggregateStock == 0:
		suggestion.Priority = repository.SeverityCritical
	case suggestion.DaysOfStock != nil && *suggestion.DaysOfStock < 3:
		suggestion.Priority = repository.SeverityHigh
	default:
		suggestion.Priority = repository.SeverityMedium
	}

	return suggestion
}

// Suggestions returns replenishment advice for every active item at or below
// its reorder level.
func (a *ReorderAdvisor) Suggestions(ctx context.Context) ([]ReorderSuggestion, error) {
	items, err := a.itemRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -a.windowDays)
	consumption, err := a.ledgerRepo.ConsumptionSince(ctx, since)
	if err != nil {
		return nil, err
	}

	suggestions := make([]ReorderSuggestion, 0)
	for _, item := range items {
		if item.AggregateStock > item.ReorderLevel {
			continue
		}
		suggestions = append(suggestions, buildSuggestion(item, consumption[item.ID], a.windowDays))
	}

	return suggestions, nil
}
