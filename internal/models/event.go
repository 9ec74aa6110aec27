package models

import (
	"path"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what a worker observed.
type EventKind string

const (
	EventSnapshot      EventKind = "snapshot"
	EventCaptureFailed EventKind = "capture_failed"
	EventCameraOffline EventKind = "camera_offline"
	EventCameraOnline  EventKind = "camera_online"
)

// Event is a single occurrence emitted by a camera worker and fanned out to
// the handler pipeline in order.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	CameraID   string    `json:"camera_id"`
	ExternalID string    `json:"external_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Error      string    `json:"error,omitempty"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	// RetentionDays carries the camera's storage window so the storage
	// handler can prune without a catalog lookup. Zero means keep forever.
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewEvent creates an event with a fresh ID and UTC timestamp.
func NewEvent(kind EventKind, cameraID, externalID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		CameraID:   cameraID,
		ExternalID: externalID,
		OccurredAt: time.Now().UTC(),
	}
}

// Snapshot is one captured frame plus the metadata needed to store and
// broadcast it. Data is never serialized; the storage handler persists it
// under ObjectKey.
type Snapshot struct {
	CameraID    string    `json:"camera_id"`
	ExternalID  string    `json:"external_id"`
	CapturedAt  time.Time `json:"captured_at"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
}

// ObjectKey returns the deterministic storage key for the snapshot:
// <external_id>/YYYY/MM/DD/HHMMSS.mmm.jpg, capture time in UTC.
func (s Snapshot) ObjectKey() string {
	ts := s.CapturedAt.UTC()
	return path.Join(s.ExternalID, ts.Format("2006/01/02"), ts.Format("150405.000")+".jpg")
}
