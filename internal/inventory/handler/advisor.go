package handler

import (
	"net/http"

	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// AdvisorHandler handles reorder suggestion endpoints
type AdvisorHandler struct {
	advisor *service.ReorderAdvisor
	logger  *logger.Logger
}

// NewAdvisorHandler creates a new advisor handler
func NewAdvisorHandler(advisor *service.ReorderAdvisor, log *logger.Logger) *AdvisorHandler {
	return &AdvisorHandler{
		advisor: advisor,
		logger:  log,
	}
}

// Suggestions returns replenishment advice for items at or below reorder level
func (h *AdvisorHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.advisor.Suggestions(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, suggestions)
}
