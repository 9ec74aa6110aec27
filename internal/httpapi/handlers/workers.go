package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"argus/internal/httpkit"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
	"argus/internal/pkg/middleware"
)

// ListWorkers returns the registry snapshot sorted by identity.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	rows := h.manager.Snapshot()
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"workers": rows,
		"count":   len(rows),
	})
}

// GetWorker returns one worker's live state.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	r = r.WithContext(logger.ContextWithCamera(r.Context(), externalID))

	info, ok := h.manager.Worker(externalID)
	if !ok {
		middleware.HandleError(w, r, h.log, errors.NotFound("worker", externalID))
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, info)
}

// DeleteWorker stops the worker and releases its identity.
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	ctx := logger.ContextWithCamera(r.Context(), externalID)
	r = r.WithContext(ctx)

	if err := h.manager.StopWorker(ctx, externalID); err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
