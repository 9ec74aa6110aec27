// Package shutdown coordinates ordered teardown of the daemon.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"argus/internal/pkg/logger"
)

// Manager runs registered cleanup hooks in reverse registration order
// when the process receives SIGINT, SIGTERM or SIGHUP. Teardown is
// sequential: the HTTP server drains before the supervisor stops its
// workers, and the workers stop before the bus and the pool close
// underneath them.
type Manager struct {
	log     *logger.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []hook
	once  sync.Once
}

type hook struct {
	name    string
	cleanup func(ctx context.Context) error
}

// NewManager creates a Manager with an overall teardown budget. A zero
// or negative timeout means 30 seconds.
func NewManager(log *logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{log: log, timeout: timeout}
}

// Register appends a cleanup hook. Hooks run newest-first, so register
// in dependency order: the pool before the server that uses it.
func (m *Manager) Register(name string, cleanup func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, cleanup: cleanup})
	m.log.Debug("registered shutdown hook", "name", name)
}

// Wait blocks until a shutdown signal arrives, then tears down.
func (m *Manager) Wait() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigc
	m.log.Info("shutdown signal received", "signal", sig.String())
	m.Shutdown()
}

// Shutdown runs the hooks under the teardown budget. Only the first
// call does anything.
func (m *Manager) Shutdown() {
	m.once.Do(m.teardown)
}

func (m *Manager) teardown() {
	m.mu.Lock()
	hooks := make([]hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.log.Info("starting graceful shutdown", "hooks", len(hooks), "timeout", m.timeout.String())

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if ctx.Err() != nil {
			m.log.Warn("shutdown budget exhausted, skipping hook", "name", h.name)
			continue
		}
		m.runHook(ctx, h)
	}

	if ctx.Err() != nil {
		m.log.Warn("graceful shutdown incomplete", "timeout", m.timeout.String())
		return
	}
	m.log.Info("graceful shutdown completed")
}

// runHook waits for the hook or the budget, whichever ends first. A hook
// that ignores its context gets abandoned, not waited on.
func (m *Manager) runHook(ctx context.Context, h hook) {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- h.cleanup(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			m.log.Error("shutdown hook failed",
				"name", h.name,
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return
		}
		m.log.Debug("shutdown hook completed",
			"name", h.name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	case <-ctx.Done():
		m.log.Warn("shutdown hook abandoned",
			"name", h.name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
