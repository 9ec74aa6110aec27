package v0

import "argus/internal/models"

// EventSpec v0: contrato mínimo para los eventos publicados en el bus.
// - event_id / kind / camera_id: identidad del evento
// - occurred_at: RFC3339 en UTC
// - object_key: sólo en snapshots (clave determinista, misma que el storage)
type EventSpec struct {
	EventID    string `json:"event_id"`
	Kind       string `json:"kind"`
	CameraID   string `json:"camera_id"`
	ExternalID string `json:"external_id"`
	OccurredAt string `json:"occurred_at"`
	Error      string `json:"error,omitempty"`
	ObjectKey  string `json:"object_key,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// FromEvent proyecta un models.Event al contrato v0. El payload binario del
// snapshot nunca viaja por el bus.
func FromEvent(ev models.Event) EventSpec {
	spec := EventSpec{
		EventID:    ev.ID,
		Kind:       string(ev.Kind),
		CameraID:   ev.CameraID,
		ExternalID: ev.ExternalID,
		OccurredAt: ev.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Error:      ev.Error,
	}
	if ev.Snapshot != nil {
		spec.ObjectKey = ev.Snapshot.ObjectKey()
		spec.Size = ev.Snapshot.Size
	}
	return spec
}
