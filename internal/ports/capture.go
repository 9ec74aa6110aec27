package ports

import (
	"context"

	"argus/internal/models"
)

// CaptureRequest addresses one snapshot attempt.
type CaptureRequest struct {
	CameraID   string
	ExternalID string
	URL        string
	Username   string
	Password   string
}

// Capturer grabs a single frame from a camera endpoint.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (*models.Snapshot, error)
}
