// Package supervisor owns the worker registry: one supervised polling worker
// per camera, restarted in isolation on crash, reconfigured in place on
// update. No worker failure may terminate the supervisor.
package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	"argus/internal/models"
	"argus/internal/pkg/backoff"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
	"argus/internal/ports"
	"argus/internal/resolver"
	"argus/internal/worker"
)

const (
	restartMultiplier = 2.0
	defaultMinDelay   = time.Second
	defaultMaxDelay   = 5 * time.Minute

	// A run at least this long counts as healthy and resets the backoff.
	healthyRunDuration = time.Minute
)

// Deps wires the supervisor's collaborators.
type Deps struct {
	Log      *logger.Logger
	Resolver *resolver.Resolver
	Factory  worker.Factory
	Catalog  ports.Catalog
	Stream   ports.StreamServer

	RestartMinDelay time.Duration
	RestartMaxDelay time.Duration
}

// Supervisor tracks every worker by camera external id. The registry map is
// the only shared mutable state; its lock is held for map mutation only, so
// distinct identities never contend.
type Supervisor struct {
	log      *logger.Logger
	resolver *resolver.Resolver
	factory  worker.Factory
	catalog  ports.Catalog
	stream   ports.StreamServer

	minDelay time.Duration
	maxDelay time.Duration

	mu      sync.RWMutex
	workers map[string]*handle
}

// handle is one registry entry. Crash and restart mutate the handle in
// place; the entry is removed only on permanent stop.
type handle struct {
	identity string

	mu        sync.Mutex
	state     State
	cfg       worker.Config
	baseSleep time.Duration
	runner    worker.Runner
	restarts  int
	startedAt time.Time
	lastErr   string

	cancel context.CancelFunc
	done   chan struct{}
}

func (h *handle) setState(next State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.CanTransitionTo(next) {
		return false
	}
	h.state = next
	return true
}

// WorkerInfo is a read-only registry view row for the ops API.
type WorkerInfo struct {
	Identity  string    `json:"identity"`
	State     State     `json:"state"`
	Restarts  int       `json:"restarts"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Sleep     string    `json:"sleep"`
}

// New creates a supervisor with an empty registry.
func New(deps Deps) *Supervisor {
	minDelay := deps.RestartMinDelay
	if minDelay <= 0 {
		minDelay = defaultMinDelay
	}
	maxDelay := deps.RestartMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	return &Supervisor{
		log:      deps.Log.WithComponent("supervisor"),
		resolver: deps.Resolver,
		factory:  deps.Factory,
		catalog:  deps.Catalog,
		stream:   deps.Stream,
		minDelay: minDelay,
		maxDelay: maxDelay,
		workers:  make(map[string]*handle),
	}
}

// StartWorker resolves cam and registers a supervised worker under its
// external id. A nil camera is a no-op. An unresolvable camera is skipped
// with a log, never a manager failure. A live identity is rejected; callers
// wanting new settings use UpdateWorker.
func (s *Supervisor) StartWorker(ctx context.Context, cam *models.Camera) error {
	if cam == nil {
		return nil
	}

	cfg, err := s.resolver.Resolve(*cam)
	if err != nil {
		s.log.Warn("camera skipped, config unresolved",
			"camera_id", cam.ExternalID,
			"error", err.Error(),
		)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{
		identity:  cfg.Identity,
		state:     StateStarting,
		cfg:       cfg,
		baseSleep: cfg.Settings.Sleep,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.workers[cfg.Identity]; exists {
		s.mu.Unlock()
		cancel()
		return errors.AlreadyExists("worker", cfg.Identity)
	}
	s.workers[cfg.Identity] = h
	s.mu.Unlock()

	go s.runLoop(runCtx, h)

	s.log.Info("worker starting",
		"camera_id", cfg.Identity,
		"sleep", cfg.Settings.Sleep.String(),
	)
	return nil
}

// runLoop supervises one worker forever: build a runner from the handle's
// current config, run it, and on crash back off and start over. Panics are
// contained here; the loop exits only on context cancellation.
func (s *Supervisor) runLoop(ctx context.Context, h *handle) {
	defer close(h.done)

	log := s.log.WithCamera(h.identity)
	boff := backoff.New(s.minDelay, s.maxDelay, restartMultiplier)

	for {
		h.mu.Lock()
		cfg := h.cfg
		runner := s.factory(cfg)
		h.runner = runner
		h.startedAt = time.Now()
		h.mu.Unlock()

		h.setState(StateRunning)

		started := time.Now()
		err := runContained(ctx, runner)

		if ctx.Err() != nil {
			h.setState(StateStopped)
			return
		}

		h.mu.Lock()
		h.restarts++
		restarts := h.restarts
		if err != nil {
			h.lastErr = err.Error()
		} else {
			h.lastErr = "worker loop returned without cancellation"
		}
		lastErr := h.lastErr
		h.mu.Unlock()
		h.setState(StateCrashed)

		if time.Since(started) >= healthyRunDuration {
			boff.Reset()
		}
		delay := boff.Next()

		log.Error("worker crashed, restarting",
			"error", lastErr,
			"restarts", restarts,
			"delay", delay.String(),
		)

		select {
		case <-ctx.Done():
			h.setState(StateStopped)
			return
		case <-time.After(delay):
		}

		h.setState(StateRestarting)
	}
}

// runContained runs the worker and converts panics into errors so a broken
// worker can never take the supervisor down.
func runContained(ctx context.Context, r worker.Runner) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf(errors.CodeInternal, "worker panic: %v", rec)
		}
	}()
	return r.Run(ctx)
}

// UpdateWorker re-resolves cam and hands the fresh config to the running
// worker in place. On resolve failure the running worker is left untouched.
// The stored config also covers the next crash-restart, and the identity key
// never changes.
func (s *Supervisor) UpdateWorker(ctx context.Context, externalID string, cam models.Camera) error {
	s.mu.RLock()
	h, ok := s.workers[externalID]
	s.mu.RUnlock()
	if !ok {
		return errors.NotFound("worker", externalID)
	}

	cfg, err := s.resolver.Resolve(cam)
	if err != nil {
		s.log.Warn("update rejected, config unresolved",
			"camera_id", externalID,
			"error", err.Error(),
		)
		return err
	}
	if cfg.Identity != externalID {
		return errors.Validationf("camera %q resolves to identity %q", externalID, cfg.Identity)
	}

	// The stream server re-reads the camera's settings; failure only logs.
	if s.stream != nil {
		if err := s.stream.Restart(ctx, externalID); err != nil {
			s.log.Warn("stream restart failed",
				"camera_id", externalID,
				"error", err.Error(),
			)
		}
	}

	h.mu.Lock()
	h.cfg = cfg
	h.baseSleep = cfg.Settings.Sleep
	runner := h.runner
	h.mu.Unlock()

	if runner != nil {
		runner.Reconfigure(cfg)
	}

	s.log.Info("worker updated",
		"camera_id", externalID,
		"sleep", cfg.Settings.Sleep.String(),
	)
	return nil
}

// AdjustSleep swaps only the poll interval of a running worker, leaving the
// resolved base sleep untouched as the restore point.
func (s *Supervisor) AdjustSleep(externalID string, sleep time.Duration) error {
	s.mu.RLock()
	h, ok := s.workers[externalID]
	s.mu.RUnlock()
	if !ok {
		return errors.NotFound("worker", externalID)
	}

	h.mu.Lock()
	cfg := h.cfg
	cfg.Settings.Sleep = sleep
	h.cfg = cfg
	runner := h.runner
	h.mu.Unlock()

	if runner != nil {
		runner.Reconfigure(cfg)
	}

	s.log.Info("worker sleep adjusted",
		"camera_id", externalID,
		"sleep", sleep.String(),
	)
	return nil
}

// BaseSleep returns the resolved poll interval for a worker, independent of
// any AdjustSleep in effect.
func (s *Supervisor) BaseSleep(externalID string) (time.Duration, error) {
	s.mu.RLock()
	h, ok := s.workers[externalID]
	s.mu.RUnlock()
	if !ok {
		return 0, errors.NotFound("worker", externalID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.baseSleep, nil
}

// StopWorker cancels a worker, waits for it to exit, and releases its
// identity. The registry entry survives until the exit is confirmed or the
// caller's context gives up.
func (s *Supervisor) StopWorker(ctx context.Context, externalID string) error {
	s.mu.RLock()
	h, ok := s.workers[externalID]
	s.mu.RUnlock()
	if !ok {
		return errors.NotFound("worker", externalID)
	}

	h.mu.Lock()
	if h.state.CanTransitionTo(StateStopped) {
		h.state = StateStopped
	}
	h.mu.Unlock()
	h.cancel()

	var stopErr error
	select {
	case <-h.done:
	case <-ctx.Done():
		stopErr = errors.Timeout("worker stop").WithField("camera_id", externalID)
	}

	s.mu.Lock()
	delete(s.workers, externalID)
	s.mu.Unlock()

	if stopErr == nil {
		s.log.Info("worker stopped", "camera_id", externalID)
	}
	return stopErr
}

// InitiateWorkers starts a worker for every camera in the catalog. A catalog
// failure propagates as unavailable; per-camera failures are logged and
// skipped so one bad camera never blocks the rest.
func (s *Supervisor) InitiateWorkers(ctx context.Context) error {
	cams, err := s.catalog.ListAll(ctx)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "supervisor.initiate", "camera catalog unavailable")
	}

	started := 0
	for i := range cams {
		err := s.StartWorker(ctx, &cams[i])
		switch {
		case err == nil:
			started++
		case errors.IsConflict(err):
			s.log.Debug("worker already running", "camera_id", cams[i].ExternalID)
		}
	}

	s.log.Info("bulk worker startup complete",
		"cameras", len(cams),
		"started", started,
	)
	return nil
}

// StartBootstrap runs InitiateWorkers as a detached task so manager
// readiness never depends on catalog size. Failures are logged only.
func (s *Supervisor) StartBootstrap(ctx context.Context) {
	go func() {
		if err := s.InitiateWorkers(ctx); err != nil {
			s.log.Error("bulk worker startup failed", "error", err.Error())
		}
	}()
}

// Close cancels every worker and waits for them within ctx.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.workers))
	for _, h := range s.workers {
		handles = append(handles, h)
	}
	s.workers = make(map[string]*handle)
	s.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		if h.state.CanTransitionTo(StateStopped) {
			h.state = StateStopped
		}
		h.mu.Unlock()
		h.cancel()
	}

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return errors.Timeout("supervisor close")
		}
	}

	s.log.Info("all workers stopped", "count", len(handles))
	return nil
}

// Snapshot returns the registry view sorted by identity.
func (s *Supervisor) Snapshot() []WorkerInfo {
	s.mu.RLock()
	handles := make([]*handle, 0, len(s.workers))
	for _, h := range s.workers {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	rows := make([]WorkerInfo, 0, len(handles))
	for _, h := range handles {
		rows = append(rows, h.info())
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Identity < rows[j].Identity })
	return rows
}

// Worker returns the registry view for one identity.
func (s *Supervisor) Worker(externalID string) (WorkerInfo, bool) {
	s.mu.RLock()
	h, ok := s.workers[externalID]
	s.mu.RUnlock()
	if !ok {
		return WorkerInfo{}, false
	}
	return h.info(), true
}

// Count returns the number of registered workers.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

func (h *handle) info() WorkerInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return WorkerInfo{
		Identity:  h.identity,
		State:     h.state,
		Restarts:  h.restarts,
		StartedAt: h.startedAt,
		LastError: h.lastErr,
		Sleep:     h.cfg.Settings.Sleep.String(),
	}
}
