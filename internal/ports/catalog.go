package ports

import (
	"context"

	"argus/internal/models"
)

// Catalog is the read-only camera inventory. Workers are never started for
// cameras outside it.
type Catalog interface {
	ListAll(ctx context.Context) ([]models.Camera, error)
	Get(ctx context.Context, externalID string) (*models.Camera, error)
}
