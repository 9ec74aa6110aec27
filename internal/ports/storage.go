package ports

import (
	"context"
	"io"
	"time"
)

type SaveObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type SaveObjectOutput struct {
	// En localfs será el mismo object_key.
	// En gdrive será el fileId real (para poder leer/stream después).
	ObjectKey string
	Size      int64
}

// SnapshotStore: implementaciones (localfs, gdrive, s3, etc.)
type SnapshotStore interface {
	Provider() string

	Save(ctx context.Context, in SaveObjectInput) (SaveObjectOutput, error)
	Open(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	Delete(ctx context.Context, objectKey string) error

	// PruneBefore removes a camera's objects captured before cutoff and
	// returns how many were removed. v0: gdrive es no-op (devuelve 0).
	PruneBefore(ctx context.Context, externalID string, cutoff time.Time) (int, error)
}
