package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// AllocationHandler handles allocation endpoints
type AllocationHandler struct {
	allocations *service.AllocationService
	logger      *logger.Logger
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(allocations *service.AllocationService, log *logger.Logger) *AllocationHandler {
	return &AllocationHandler{
		allocations: allocations,
		logger:      log,
	}
}

type allocateRequest struct {
	OrderRef string                   `json:"order_ref" validate:"required"`
	Lines    []service.AllocationLine `json:"lines" validate:"required,min=1,dive"`
}

// Allocate allocates stock against an order
func (h *AllocationHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	results, err := h.allocations.Allocate(r.Context(), req.OrderRef, req.Lines)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, results)
}

// Reverse reverses an order's allocation
func (h *AllocationHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")

	result, err := h.allocations.ReverseAllocation(r.Context(), orderRef)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
