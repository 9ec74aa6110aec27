package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"argus/internal/models"
	"argus/internal/pkg/errors"
)

// CameraRepository reads the camera catalog. The supervisor only ever reads;
// camera writes belong to the platform API that owns the table.
type CameraRepository struct {
	db *pgxpool.Pool
}

func NewCameraRepository(db *pgxpool.Pool) *CameraRepository {
	return &CameraRepository{db: db}
}

const cameraColumns = `
	id, external_id, vendor, COALESCE(vendor_external_id, ''),
	COALESCE(snapshot_url, ''), COALESCE(username, ''), COALESCE(password, ''),
	COALESCE(timezone, ''), COALESCE(poll_sleep_seconds, 0),
	COALESCE(initial_sleep_seconds, 0), cloud_recording, created_at
`

func (r *CameraRepository) ListAll(ctx context.Context) ([]models.Camera, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+cameraColumns+`
		FROM cameras
		WHERE deleted_at IS NULL
		ORDER BY external_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "cameras.list", "listing cameras")
	}
	defer rows.Close()

	var out []models.Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, errors.Wrap(err, "cameras.list", "scanning camera row")
		}
		out = append(out, *cam)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cameras.list", "reading camera rows")
	}
	return out, nil
}

func (r *CameraRepository) Get(ctx context.Context, externalID string) (*models.Camera, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+cameraColumns+`
		FROM cameras
		WHERE external_id=$1 AND deleted_at IS NULL
	`, externalID)

	cam, err := scanCamera(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("camera", externalID)
		}
		return nil, errors.Wrap(err, "cameras.get", "scanning camera row")
	}
	return cam, nil
}

func scanCamera(row pgx.Row) (*models.Camera, error) {
	var (
		cam         models.Camera
		pollSecs    int64
		initialSecs int64
	)
	err := row.Scan(
		&cam.ID,
		&cam.ExternalID,
		&cam.Vendor,
		&cam.VendorExternalID,
		&cam.SnapshotURL,
		&cam.Username,
		&cam.Password,
		&cam.Timezone,
		&pollSecs,
		&initialSecs,
		&cam.CloudRecording,
		&cam.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	cam.PollSleep = time.Duration(pollSecs) * time.Second
	cam.InitialSleep = time.Duration(initialSecs) * time.Second
	return &cam, nil
}
