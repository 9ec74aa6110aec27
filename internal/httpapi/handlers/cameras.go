package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"argus/internal/httpkit"
	"argus/internal/pkg/logger"
	"argus/internal/pkg/middleware"
)

// StartCamera looks the camera up in the catalog and spawns its worker.
func (h *Handler) StartCamera(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	ctx := logger.ContextWithCamera(r.Context(), externalID)
	r = r.WithContext(ctx)

	cam, err := h.catalog.Get(ctx, externalID)
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	if err := h.manager.StartWorker(ctx, cam); err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	info, _ := h.manager.Worker(externalID)
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"worker": info})
}

// UpdateCamera re-reads the camera from the catalog and reconfigures its
// running worker in place.
func (h *Handler) UpdateCamera(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	ctx := logger.ContextWithCamera(r.Context(), externalID)
	r = r.WithContext(ctx)

	cam, err := h.catalog.Get(ctx, externalID)
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	if err := h.manager.UpdateWorker(ctx, externalID, *cam); err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	info, _ := h.manager.Worker(externalID)
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"worker": info})
}
