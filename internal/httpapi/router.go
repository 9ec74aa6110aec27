package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"argus/internal/httpapi/handlers"
	"argus/internal/httpkit"
	"argus/internal/pkg/logger"
	"argus/internal/pkg/middleware"
	"argus/internal/ports"
)

type Deps struct {
	Pool    *pgxpool.Pool
	Bus     ports.EventBus
	Store   ports.SnapshotStore
	Catalog ports.Catalog
	Manager handlers.WorkerManager
	Log     *logger.Logger
}

// requestTimeout bounds every handler, catalog lookups included. Worker
// start and stop return well before this under normal load.
const requestTimeout = 15 * time.Second

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Timeout(requestTimeout))

	// ---- CORS (dashboards / internal tooling) ----
	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Pool:    d.Pool,
		Bus:     d.Bus,
		Store:   d.Store,
		Catalog: d.Catalog,
		Manager: d.Manager,
		Log:     d.Log,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- WORKERS ----
	r.Get("/workers", h.ListWorkers)
	r.Get("/workers/{externalID}", h.GetWorker)
	r.Delete("/workers/{externalID}", h.DeleteWorker)

	// ---- CAMERAS ----
	r.Post("/cameras/{externalID}/start", h.StartCamera)
	r.Post("/cameras/{externalID}/update", h.UpdateCamera)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
