package service

import (
	"context"
	"time"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// CatalogService handles item catalog reads and writes plus ledger lookups
type CatalogService struct {
	itemRepo   *repository.ItemRepository
	batchRepo  *repository.BatchRepository
	ledgerRepo *repository.LedgerRepository
	logger     *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	ledgerRepo *repository.LedgerRepository,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		logger:     log,
	}
}

// ItemWithBatches bundles an item with its batches and derived expiry info
type ItemWithBatches struct {
	*repository.InventoryItem
	Batches       []*repository.StockBatch `json:"batches"`
	NearestExpiry *time.Time               `json:"nearest_expiry,omitempty"`
}

// CreateItem creates a new catalog item
func (s *CatalogService) CreateItem(ctx context.Context, item *repository.InventoryItem) error {
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return err
	}

	s.logger.Info().Str("item_id", item.ID).Str("sku", item.SKU).Msg("item created")
	return nil
}

// GetItem gets an item with its batches
func (s *CatalogService) GetItem(ctx context.Context, id string) (*ItemWithBatches, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return enrichItem(item, batches), nil
}

// ListItems lists catalog items with pagination and optional category filter
func (s *CatalogService) ListItems(ctx context.Context, page, perPage int, category string) ([]*repository.InventoryItem, int64, error) {
	return s.itemRepo.List(ctx, page, perPage, category)
}

// UpdateItem updates an item's catalog configuration
func (s *CatalogService) UpdateItem(ctx context.Context, item *repository.InventoryItem) error {
	return s.itemRepo.Update(ctx, item)
}

// DeactivateItem retires an item from the catalog
func (s *CatalogService) DeactivateItem(ctx context.Context, id string) error {
	return s.itemRepo.Deactivate(ctx, id)
}

// ListMovements lists an item's ledger entries, newest first
func (s *CatalogService) ListMovements(ctx context.Context, itemID string, page, perPage int) ([]*repository.StockMovement, int64, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, 0, err
	}
	return s.ledgerRepo.ListByItem(ctx, itemID, page, perPage)
}

func enrichItem(item *repository.InventoryItem, batches []*repository.StockBatch) *ItemWithBatches {
	enriched := &ItemWithBatches{
		InventoryItem: item,
		Batches:       batches,
	}

	for _, batch := range batches {
		if batch.Status != repository.BatchStatusActive || batch.ExpiresAt == nil || batch.RemainingQuantity == 0 {
			continue
		}
		if enriched.NearestExpiry == nil || batch.ExpiresAt.Before(*enriched.NearestExpiry) {
			enriched.NearestExpiry = batch.ExpiresAt
		}
	}

	return enriched
}
