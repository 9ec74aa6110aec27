package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"argus/internal/models"
	"argus/internal/pkg/logger"
	"argus/internal/ports"
	"argus/internal/supervisor"
)

// WorkerManager is the supervisor surface the ops API drives.
type WorkerManager interface {
	Snapshot() []supervisor.WorkerInfo
	Worker(externalID string) (supervisor.WorkerInfo, bool)
	Count() int
	StartWorker(ctx context.Context, cam *models.Camera) error
	UpdateWorker(ctx context.Context, externalID string, cam models.Camera) error
	StopWorker(ctx context.Context, externalID string) error
}

type Deps struct {
	Pool    *pgxpool.Pool
	Bus     ports.EventBus
	Store   ports.SnapshotStore
	Catalog ports.Catalog
	Manager WorkerManager
	Log     *logger.Logger
}

type Handler struct {
	pool    *pgxpool.Pool
	bus     ports.EventBus
	store   ports.SnapshotStore
	catalog ports.Catalog
	manager WorkerManager
	log     *logger.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		pool:    d.Pool,
		bus:     d.Bus,
		store:   d.Store,
		catalog: d.Catalog,
		manager: d.Manager,
		log:     d.Log.WithComponent("httpapi"),
	}
}
