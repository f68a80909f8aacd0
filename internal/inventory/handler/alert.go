package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/actor"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	scanner *service.AlertScanner
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(scanner *service.AlertScanner, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		scanner: scanner,
		logger:  log,
	}
}

// List lists current alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	alertType := r.URL.Query().Get("type")
	severity := r.URL.Query().Get("severity")
	unacknowledgedOnly := r.URL.Query().Get("unacknowledged") == "true"

	alerts, err := h.scanner.ListAlerts(r.Context(), alertType, severity, unacknowledgedOnly)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// Acknowledge acknowledges an alert
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actorID := actor.PerformedBy(r.Context())

	if err := h.scanner.AcknowledgeAlert(r.Context(), id, actorID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Scan triggers an on-demand alert scan
func (h *AlertHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if err := h.scanner.Scan(r.Context()); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
