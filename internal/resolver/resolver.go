// Package resolver derives immutable worker configs from catalog cameras.
package resolver

import (
	"net/url"
	"strings"
	"time"

	"argus/internal/models"
	"argus/internal/pipeline"
	"argus/internal/pkg/errors"
	"argus/internal/worker"
)

const (
	defaultTimezone     = "Etc/UTC"
	defaultSleep        = time.Minute
	idleSleep           = 10 * time.Minute
	pausedSleep         = time.Hour
	defaultInitialSleep = 3 * time.Second
)

// Resolver turns catalog cameras into worker configs. Resolve is pure and
// synchronous; the process-wide pipeline is attached unchanged to every
// config, never varied per camera.
type Resolver struct {
	pipeline *pipeline.Pipeline
}

// New builds a resolver bound to the startup-fixed pipeline.
func New(p *pipeline.Pipeline) *Resolver {
	return &Resolver{pipeline: p}
}

// Resolve derives a fresh config for cam. It never panics; an unusable
// snapshot URL yields a CodeInvalidHost error carrying the offending value.
func (r *Resolver) Resolve(cam models.Camera) (worker.Config, error) {
	if cam.ExternalID == "" {
		return worker.Config{}, errors.Validation("camera has no external id").
			WithField("camera_id", cam.ID)
	}

	pollURL, auth, err := deriveEndpoint(cam)
	if err != nil {
		return worker.Config{}, err
	}

	tz := cam.Timezone
	if tz == "" {
		tz = defaultTimezone
	}

	var schedule models.Schedule
	retention := 0
	if rec := cam.CloudRecording; rec != nil {
		schedule = rec.Schedule
		retention = rec.StorageDuration
	}

	return worker.Config{
		Identity: cam.ExternalID,
		Settings: worker.Settings{
			CameraID:         cam.ID,
			ExternalID:       cam.ExternalID,
			VendorExternalID: cam.VendorExternalID,
			Schedule:         schedule,
			Timezone:         tz,
			URL:              pollURL,
			Auth:             auth,
			Sleep:            deriveSleep(cam),
			InitialSleep:     deriveInitialSleep(cam),
			RetentionDays:    retention,
		},
		Handlers: r.pipeline,
	}, nil
}

// deriveEndpoint validates the snapshot URL and resolves credentials.
// Userinfo embedded in the URL replaces the catalog credentials and is
// stripped from the polled URL.
func deriveEndpoint(cam models.Camera) (string, worker.Auth, error) {
	raw := strings.TrimSpace(cam.SnapshotURL)
	if raw == "" {
		return "", worker.Auth{}, errors.InvalidHost(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", worker.Auth{}, errors.InvalidHost(raw)
	}

	switch u.Scheme {
	case "http", "https", "rtsp":
	default:
		return "", worker.Auth{}, errors.InvalidHost(raw)
	}
	if u.Hostname() == "" {
		return "", worker.Auth{}, errors.InvalidHost(raw)
	}

	auth := worker.Auth{Username: cam.Username, Password: cam.Password}
	if u.User != nil {
		auth.Username = u.User.Username()
		auth.Password, _ = u.User.Password()
		u.User = nil
	}

	return u.String(), auth, nil
}

// deriveSleep maps the cloud-recording plan to a poll interval. Total: every
// camera gets a value.
func deriveSleep(cam models.Camera) time.Duration {
	rec := cam.CloudRecording
	if rec == nil {
		return idleSleep
	}

	switch rec.Status {
	case models.RecordingOn:
		if cam.PollSleep > 0 {
			return cam.PollSleep
		}
		if rec.Frequency > 0 {
			return time.Minute / time.Duration(rec.Frequency)
		}
		return defaultSleep
	case models.RecordingPaused:
		return pausedSleep
	default:
		return idleSleep
	}
}

func deriveInitialSleep(cam models.Camera) time.Duration {
	if cam.InitialSleep > 0 {
		return cam.InitialSleep
	}
	return defaultInitialSleep
}
