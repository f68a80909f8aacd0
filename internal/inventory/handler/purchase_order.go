package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// PurchaseOrderHandler handles purchase order endpoints
type PurchaseOrderHandler struct {
	receiving *service.ReceivingService
	logger    *logger.Logger
}

// NewPurchaseOrderHandler creates a new purchase order handler
func NewPurchaseOrderHandler(receiving *service.ReceivingService, log *logger.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		receiving: receiving,
		logger:    log,
	}
}

type createPORequest struct {
	SupplierID string                     `json:"supplier_id" validate:"required,uuid"`
	Notes      *string                    `json:"notes,omitempty"`
	Lines      []service.OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create creates a draft purchase order
func (h *PurchaseOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	po, err := h.receiving.CreatePurchaseOrder(r.Context(), req.SupplierID, req.Notes, req.Lines)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, po)
}

// Get gets a purchase order with its lines
func (h *PurchaseOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	po, err := h.receiving.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, po)
}

// List lists purchase orders
func (h *PurchaseOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	status := r.URL.Query().Get("status")

	pos, total, err := h.receiving.ListPurchaseOrders(r.Context(), status, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, pos, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Send marks a draft purchase order as sent
func (h *PurchaseOrderHandler) Send(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.receiving.MarkSent(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Confirm marks a sent purchase order as confirmed
func (h *PurchaseOrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.receiving.MarkConfirmed(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

type receiveRequest struct {
	Lines []service.ReceiptLine `json:"lines" validate:"required,min=1,dive"`
}

// Receive books a delivery against a purchase order
func (h *PurchaseOrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req receiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.receiving.Receive(r.Context(), id, req.Lines)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
