package worker

import (
	"context"
	"time"

	"argus/internal/models"
	"argus/internal/pkg/logger"
	"argus/internal/ports"
)

// offlineThreshold is the number of consecutive capture failures before a
// camera_offline event is emitted.
const offlineThreshold = 3

// PollWorker is the default Runner: sleep, capture one frame, emit events,
// repeat. Capture failures are handled in-loop and never crash the worker.
type PollWorker struct {
	log      *logger.Logger
	capturer ports.Capturer

	cfg     Config
	updates chan Config

	// Loop-goroutine state, never touched from outside Run.
	loc      *time.Location
	failures int
}

// NewPollWorker builds a worker for cfg. Handlers are already attached via
// cfg, so no event can be emitted without a subscription.
func NewPollWorker(cfg Config, capturer ports.Capturer, log *logger.Logger) *PollWorker {
	return &PollWorker{
		log:      log.WithComponent("worker"),
		capturer: capturer,
		cfg:      cfg,
		updates:  make(chan Config, 1),
	}
}

// NewFactory returns a Factory producing PollWorkers bound to capturer.
func NewFactory(capturer ports.Capturer, log *logger.Logger) Factory {
	return func(cfg Config) Runner {
		return NewPollWorker(cfg, capturer, log)
	}
}

// Reconfigure queues cfg for the loop. Latest value wins: a pending update
// that was never picked up is dropped rather than blocking the caller.
func (w *PollWorker) Reconfigure(cfg Config) {
	for {
		select {
		case w.updates <- cfg:
			return
		default:
			select {
			case <-w.updates:
			default:
			}
		}
	}
}

// Run executes the poll loop until ctx is canceled.
func (w *PollWorker) Run(ctx context.Context) error {
	log := w.log.WithCamera(w.cfg.Settings.ExternalID)
	w.loc = loadLocation(log, w.cfg.Settings.Timezone)

	log.Info("worker started",
		"url", w.cfg.Settings.URL,
		"sleep", w.cfg.Settings.Sleep.String(),
		"initial_sleep", w.cfg.Settings.InitialSleep.String(),
	)

	timer := time.NewTimer(w.cfg.Settings.InitialSleep)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return nil

		case next := <-w.updates:
			w.cfg = next
			w.loc = loadLocation(log, next.Settings.Timezone)
			log.Info("worker reconfigured",
				"sleep", next.Settings.Sleep.String(),
				"url", next.Settings.URL,
			)

		case <-timer.C:
			w.poll(ctx, log)
			timer.Reset(w.cfg.Settings.Sleep)
		}
	}
}

// poll runs one capture attempt and emits the resulting events in pipeline
// order.
func (w *PollWorker) poll(ctx context.Context, log *logger.Logger) {
	s := w.cfg.Settings

	if !s.Schedule.ActiveAt(time.Now().In(w.loc)) {
		log.Debug("outside recording schedule, skipping capture")
		return
	}

	snap, err := w.capturer.Capture(ctx, ports.CaptureRequest{
		CameraID:   s.CameraID,
		ExternalID: s.ExternalID,
		URL:        s.URL,
		Username:   s.Auth.Username,
		Password:   s.Auth.Password,
	})
	if err != nil {
		w.failures++
		log.Warn("capture failed", "failures", w.failures, "error", err.Error())

		ev := models.NewEvent(models.EventCaptureFailed, s.CameraID, s.ExternalID)
		ev.Error = err.Error()
		w.cfg.Handlers.Dispatch(ctx, ev)

		if w.failures == offlineThreshold {
			log.Warn("camera considered offline", "failures", w.failures)
			w.cfg.Handlers.Dispatch(ctx, models.NewEvent(models.EventCameraOffline, s.CameraID, s.ExternalID))
		}
		return
	}

	if w.failures >= offlineThreshold {
		log.Info("camera back online", "failures", w.failures)
		w.cfg.Handlers.Dispatch(ctx, models.NewEvent(models.EventCameraOnline, s.CameraID, s.ExternalID))
	}
	w.failures = 0

	snap.CameraID = s.CameraID
	snap.ExternalID = s.ExternalID

	ev := models.NewEvent(models.EventSnapshot, s.CameraID, s.ExternalID)
	ev.Snapshot = snap
	ev.RetentionDays = s.RetentionDays
	w.cfg.Handlers.Dispatch(ctx, ev)
}

func loadLocation(log *logger.Logger, tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("unknown timezone, falling back to UTC", "timezone", tz)
		return time.UTC
	}
	return loc
}
