// Package worker runs one long-lived polling loop per camera. Workers are
// created and restarted by the supervisor and emit every observation through
// the shared handler pipeline.
package worker

import (
	"context"
	"time"

	"argus/internal/models"
	"argus/internal/pipeline"
)

// Auth are the credentials used when polling a camera endpoint.
type Auth struct {
	Username string
	Password string
}

// Settings are the per-camera poll parameters derived by the resolver.
type Settings struct {
	CameraID         string
	ExternalID       string
	VendorExternalID string
	Schedule         models.Schedule
	Timezone         string
	URL              string
	Auth             Auth
	Sleep            time.Duration
	InitialSleep     time.Duration
	RetentionDays    int
}

// Config is an immutable worker configuration. Every resolve produces a
// fresh value; running workers swap whole values and never mutate fields.
type Config struct {
	Identity string
	Settings Settings
	Handlers *pipeline.Pipeline
}

// Runner is one supervised camera worker.
type Runner interface {
	// Run polls until ctx is canceled. A non-nil return or a panic is a
	// crash; the supervisor restarts the worker with backoff.
	Run(ctx context.Context) error

	// Reconfigure hands the worker a fresh config. It never blocks; the
	// config is applied between poll iterations and the latest value wins.
	Reconfigure(cfg Config)
}

// Factory builds runners. The supervisor goes through it so tests can
// substitute fakes for the polling implementation.
type Factory func(cfg Config) Runner
