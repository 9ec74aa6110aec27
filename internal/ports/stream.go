package ports

import "context"

// StreamServer is the media server that consumes camera streams. Restart
// tells it to re-read a camera's settings after a reconfigure.
type StreamServer interface {
	Restart(ctx context.Context, externalID string) error
}
