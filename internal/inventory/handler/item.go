package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// ItemHandler handles catalog item endpoints
type ItemHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(catalog *service.CatalogService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		catalog: catalog,
		logger:  log,
	}
}

type itemRequest struct {
	SKU               string  `json:"sku" validate:"required"`
	Barcode           *string `json:"barcode,omitempty"`
	Name              string  `json:"name" validate:"required"`
	Category          string  `json:"category" validate:"required"`
	SupplierID        *string `json:"supplier_id,omitempty"`
	Unit              string  `json:"unit" validate:"required"`
	CostPriceCents    int     `json:"cost_price_cents" validate:"gte=0"`
	SellingPriceCents int     `json:"selling_price_cents" validate:"gte=0"`
	MinStock          int     `json:"min_stock" validate:"gte=0"`
	MaxStock          *int    `json:"max_stock,omitempty"`
	ReorderLevel      int     `json:"reorder_level" validate:"gte=0"`
	ReorderQuantity   int     `json:"reorder_quantity" validate:"gte=0"`
	ShelfLifeDays     *int    `json:"shelf_life_days,omitempty"`
	Perishable        bool    `json:"perishable"`
}

func (req *itemRequest) toItem() *repository.InventoryItem {
	return &repository.InventoryItem{
		SKU:               req.SKU,
		Barcode:           req.Barcode,
		Name:              req.Name,
		Category:          req.Category,
		SupplierID:        req.SupplierID,
		Unit:              req.Unit,
		CostPriceCents:    req.CostPriceCents,
		SellingPriceCents: req.SellingPriceCents,
		MinStock:          req.MinStock,
		MaxStock:          req.MaxStock,
		ReorderLevel:      req.ReorderLevel,
		ReorderQuantity:   req.ReorderQuantity,
		ShelfLifeDays:     req.ShelfLifeDays,
		Perishable:        req.Perishable,
		IsActive:          true,
	}
}

// Create creates a catalog item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item := req.toItem()
	if err := h.catalog.CreateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, item)
}

// Get gets an item with its batches
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// List lists catalog items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	category := r.URL.Query().Get("category")

	items, total, err := h.catalog.ListItems(r.Context(), page, perPage, category)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Update updates an item's catalog configuration
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req itemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item := req.toItem()
	item.ID = id
	if err := h.catalog.UpdateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Deactivate retires an item from the catalog
func (h *ItemHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeactivateItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Movements lists an item's ledger entries
func (h *ItemHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	movements, total, err := h.catalog.ListMovements(r.Context(), id, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}
