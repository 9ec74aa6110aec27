package handlers

import (
	"context"
	"time"

	"argus/internal/models"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
)

// SnapshotRecorder persists snapshot metadata rows. Implemented by
// repositories.SnapshotRepository.
type SnapshotRecorder interface {
	Insert(ctx context.Context, ev models.Event) error
	DeleteBefore(ctx context.Context, externalID string, cutoff time.Time) (int64, error)
}

// Persistence records snapshot metadata so the catalog side can list and
// query captures without touching the object store. Non-snapshot events
// pass through untouched.
type Persistence struct {
	repo SnapshotRecorder
	log  *logger.Logger
}

func NewPersistence(repo SnapshotRecorder, log *logger.Logger) *Persistence {
	return &Persistence{
		repo: repo,
		log:  log.WithComponent("persistence"),
	}
}

func (p *Persistence) Name() string { return "persistence" }

func (p *Persistence) HandleEvent(ctx context.Context, ev models.Event) error {
	if ev.Kind != models.EventSnapshot || ev.Snapshot == nil {
		return nil
	}

	if err := p.repo.Insert(ctx, ev); err != nil {
		return errors.Wrap(err, "persistence.insert", "recording snapshot metadata")
	}

	p.log.Debug("snapshot recorded",
		"camera_id", ev.ExternalID,
		"object_key", ev.Snapshot.ObjectKey(),
	)

	p.prune(ctx, ev)
	return nil
}

// prune keeps the metadata table aligned with the retention window the
// storage handler enforces on objects. Failures are logged, not surfaced.
func (p *Persistence) prune(ctx context.Context, ev models.Event) {
	if ev.RetentionDays <= 0 {
		return
	}

	cutoff := ev.OccurredAt.AddDate(0, 0, -ev.RetentionDays)
	removed, err := p.repo.DeleteBefore(ctx, ev.ExternalID, cutoff)
	if err != nil {
		p.log.Warn("snapshot metadata prune failed",
			"camera_id", ev.ExternalID,
			"error", err.Error(),
		)
		return
	}
	if removed > 0 {
		p.log.Debug("snapshot metadata pruned",
			"camera_id", ev.ExternalID,
			"removed", removed,
		)
	}
}
