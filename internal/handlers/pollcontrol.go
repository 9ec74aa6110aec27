package handlers

import (
	"context"
	"sync"
	"time"

	"argus/internal/models"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
)

const (
	// slowFailureThreshold is how many consecutive capture failures a camera
	// accumulates before its polling is slowed down.
	slowFailureThreshold = 5

	// slowedSleep is the poll interval applied to a persistently failing
	// camera until it recovers.
	slowedSleep = 5 * time.Minute
)

// Controller is the sleep-adjustment surface poll control drives. The
// supervisor implements it; SetController binds it after both exist because
// the pipeline has to be assembled before the supervisor that carries it.
type Controller interface {
	AdjustSleep(externalID string, sleep time.Duration) error
	BaseSleep(externalID string) (time.Duration, error)
}

// PollControl backs off the polling of cameras that keep failing, so a dead
// endpoint does not burn a request every few seconds forever. On the first
// successful capture the camera returns to its resolved interval.
type PollControl struct {
	log *logger.Logger

	mu       sync.Mutex
	ctrl     Controller
	failures map[string]int
	slowed   map[string]bool
}

func NewPollControl(log *logger.Logger) *PollControl {
	return &PollControl{
		log:      log.WithComponent("poll_control"),
		failures: make(map[string]int),
		slowed:   make(map[string]bool),
	}
}

// SetController binds the supervisor once it exists. Events arriving before
// the bind are counted but never acted on.
func (pc *PollControl) SetController(ctrl Controller) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.ctrl = ctrl
}

func (pc *PollControl) Name() string { return "poll_control" }

func (pc *PollControl) HandleEvent(ctx context.Context, ev models.Event) error {
	switch ev.Kind {
	case models.EventCaptureFailed:
		return pc.onFailure(ev.ExternalID)
	case models.EventSnapshot, models.EventCameraOnline:
		return pc.onRecovery(ev.ExternalID)
	default:
		return nil
	}
}

func (pc *PollControl) onFailure(externalID string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.failures[externalID]++
	if pc.failures[externalID] < slowFailureThreshold || pc.slowed[externalID] {
		return nil
	}
	if pc.ctrl == nil {
		return nil
	}

	if err := pc.ctrl.AdjustSleep(externalID, slowedSleep); err != nil {
		return errors.Wrap(err, "pollcontrol.slow", "slowing camera polling")
	}
	pc.slowed[externalID] = true

	pc.log.Info("camera polling slowed",
		"camera_id", externalID,
		"failures", pc.failures[externalID],
		"sleep", slowedSleep.String(),
	)
	return nil
}

func (pc *PollControl) onRecovery(externalID string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.failures[externalID] = 0
	if !pc.slowed[externalID] || pc.ctrl == nil {
		return nil
	}

	base, err := pc.ctrl.BaseSleep(externalID)
	if err != nil {
		return errors.Wrap(err, "pollcontrol.restore", "looking up resolved sleep")
	}
	if err := pc.ctrl.AdjustSleep(externalID, base); err != nil {
		return errors.Wrap(err, "pollcontrol.restore", "restoring camera polling")
	}
	pc.slowed[externalID] = false

	pc.log.Info("camera polling restored",
		"camera_id", externalID,
		"sleep", base.String(),
	)
	return nil
}
