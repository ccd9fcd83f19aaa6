package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ConfirmationHandler serves the confirmation history.
type ConfirmationHandler struct {
	store *store.Store
}

// NewConfirmationHandler creates a new ConfirmationHandler.
func NewConfirmationHandler(s *store.Store) *ConfirmationHandler {
	return &ConfirmationHandler{store: s}
}

type listConfirmationsResponse struct {
	Confirmations []*store.Confirmation `json:"confirmations"`
	Counts        map[string]int        `json:"counts"`
}

// ServeHTTP handles GET /api/confirmations?limit=N.
func (h *ConfirmationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := h.store.Confirmations().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list confirmations")
		return
	}
	counts, err := h.store.Confirmations().CountByClass()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count confirmations")
		return
	}

	if rows == nil {
		rows = []*store.Confirmation{}
	}
	writeJSON(w, http.StatusOK, listConfirmationsResponse{Confirmations: rows, Counts: counts})
}
