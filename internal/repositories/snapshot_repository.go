package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"argus/internal/httpkit"
	"argus/internal/models"
	"argus/internal/pkg/errors"
)

// SnapshotRepository records snapshot metadata. The payload itself lives in
// the object store; this table is what listings and retention audits query.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert stores one snapshot row. The object key is unique, so a replayed
// event is a no-op instead of an error.
func (r *SnapshotRepository) Insert(ctx context.Context, ev models.Event) error {
	if ev.Snapshot == nil {
		return errors.Validation("event carries no snapshot")
	}

	snap := ev.Snapshot
	_, err := r.db.Exec(ctx, `
		INSERT INTO snapshots (id, camera_id, external_id, object_key, content_type, size_bytes, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ev.ID, snap.CameraID, snap.ExternalID, snap.ObjectKey(), snap.ContentType, snap.Size, snap.CapturedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			// Replayed event; the row is already there.
			return nil
		}
		return errors.Wrap(err, "snapshots.insert", "inserting snapshot row")
	}
	return nil
}

// DeleteBefore removes metadata rows outside the camera's retention window,
// mirroring what the storage handler prunes from the object store.
func (r *SnapshotRepository) DeleteBefore(ctx context.Context, externalID string, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
		DELETE FROM snapshots
		WHERE external_id=$1 AND captured_at < $2
	`, externalID, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "snapshots.prune", "deleting expired snapshot rows")
	}
	return cmd.RowsAffected(), nil
}
