package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"argus/internal/httpkit"
)

// Health performs a health check of the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"status":  "ok",
		"service": "argusd",
		"version": "0.1.0",
		"workers": h.manager.Count(),
	}

	// Check if deep health check is requested
	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		// If any check failed, change status
		for _, check := range checks {
			if checkMap, ok := check.(map[string]any); ok {
				if checkMap["status"] != "ok" {
					health["status"] = "degraded"
					log.Warn("health check degraded", "checks", checks)
					break
				}
			}
		}
	}

	httpkit.WriteJSON(w, 200, health)
}

// deepHealthCheck performs detailed health checks on dependencies.
func (h *Handler) deepHealthCheck(ctx context.Context) map[string]any {
	checks := make(map[string]any)

	checks["postgres"] = h.checkPostgres(ctx)
	checks["bus"] = h.checkBus(ctx)
	checks["storage"] = h.checkStorage(ctx)
	checks["registry"] = h.checkRegistry()

	return checks
}

func (h *Handler) checkPostgres(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{
		"status": "ok",
	}

	if h.pool == nil {
		result["status"] = "disabled"
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	} else {
		stats := h.pool.Stat()
		result["total_conns"] = stats.TotalConns()
		result["idle_conns"] = stats.IdleConns()
		result["acquired_conns"] = stats.AcquiredConns()

		// A reachable database without the catalog schema still cannot
		// bootstrap workers.
		var one int
		err := h.pool.QueryRow(checkCtx, `SELECT 1 FROM cameras LIMIT 1`).Scan(&one)
		switch {
		case err == nil || err == pgx.ErrNoRows:
		case httpkit.IsUndefinedTable(err):
			result["status"] = "error"
			result["error"] = "cameras table missing"
		default:
			result["status"] = "error"
			result["error"] = err.Error()
		}
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkBus(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{
		"status": "ok",
	}

	if h.bus == nil {
		result["status"] = "disabled"
		return result
	}
	result["provider"] = h.bus.Provider()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.bus.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkStorage(_ context.Context) map[string]any {
	result := map[string]any{
		"status": "ok",
	}

	if h.store == nil {
		result["status"] = "disabled"
		return result
	}
	result["provider"] = h.store.Provider()

	return result
}

func (h *Handler) checkRegistry() map[string]any {
	return map[string]any{
		"status":  "ok",
		"workers": h.manager.Count(),
	}
}
