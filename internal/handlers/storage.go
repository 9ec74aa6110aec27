package handlers

import (
	"bytes"
	"context"

	"argus/internal/models"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
	"argus/internal/ports"
)

// Storage writes snapshot payloads to the configured object store and keeps
// each camera's prefix inside its retention window.
type Storage struct {
	store ports.SnapshotStore
	log   *logger.Logger
}

func NewStorage(store ports.SnapshotStore, log *logger.Logger) *Storage {
	return &Storage{
		store: store,
		log:   log.WithComponent("storage"),
	}
}

func (s *Storage) Name() string { return "storage" }

func (s *Storage) HandleEvent(ctx context.Context, ev models.Event) error {
	if ev.Kind != models.EventSnapshot || ev.Snapshot == nil {
		return nil
	}

	snap := ev.Snapshot
	out, err := s.store.Save(ctx, ports.SaveObjectInput{
		ObjectKey:   snap.ObjectKey(),
		ContentType: snap.ContentType,
		Reader:      bytes.NewReader(snap.Data),
		Size:        snap.Size,
	})
	if err != nil {
		return errors.Wrap(err, "storage.save", "saving snapshot to "+s.store.Provider())
	}

	s.log.Debug("snapshot stored",
		"camera_id", snap.ExternalID,
		"object_key", out.ObjectKey,
		"size", out.Size,
	)

	s.prune(ctx, ev)
	return nil
}

// prune trims objects past the camera's retention window. It rides on
// snapshot delivery instead of a scheduler, so the window is only ever
// enforced for cameras that still produce captures. Failures are logged,
// never surfaced, because the save already succeeded.
func (s *Storage) prune(ctx context.Context, ev models.Event) {
	if ev.RetentionDays <= 0 {
		return
	}

	cutoff := ev.OccurredAt.AddDate(0, 0, -ev.RetentionDays)
	removed, err := s.store.PruneBefore(ctx, ev.Snapshot.ExternalID, cutoff)
	if err != nil {
		s.log.Warn("snapshot prune failed",
			"camera_id", ev.Snapshot.ExternalID,
			"error", err.Error(),
		)
		return
	}
	if removed > 0 {
		s.log.Info("snapshots pruned",
			"camera_id", ev.Snapshot.ExternalID,
			"removed", removed,
			"retention_days", ev.RetentionDays,
		)
	}
}
