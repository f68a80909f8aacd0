package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// CountHandler handles stock count session endpoints
type CountHandler struct {
	counts *service.CountService
	logger *logger.Logger
}

// NewCountHandler creates a new count handler
func NewCountHandler(counts *service.CountService, log *logger.Logger) *CountHandler {
	return &CountHandler{
		counts: counts,
		logger: log,
	}
}

type createSessionRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// CreateSession opens a new count session
func (h *CountHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	session, err := h.counts.CreateSession(r.Context(), req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, session)
}

type sessionResponse struct {
	*repository.StockCountSession
	Counts []*repository.StockCountItem `json:"counts"`
}

// GetSession gets a count session with its counted items
func (h *CountHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, counts, err := h.counts.GetSession(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sessionResponse{
		StockCountSession: session,
		Counts:            counts,
	})
}

// RecordCount records one counted figure in an open session
func (h *CountHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var entry service.CountEntry
	if err := httputil.DecodeJSON(r, &entry); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(entry); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.counts.RecordCount(r.Context(), id, entry); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Reconcile applies a session's counts to stock
func (h *CountHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	records, err := h.counts.Reconcile(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, records)
}
