// Package pipeline assembles the ordered event-handler chain workers emit to.
// The chain is fixed at startup; workers never mutate it.
package pipeline

import (
	"context"

	"argus/internal/models"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
)

// Handler tags accepted in PIPELINE_HANDLERS.
const (
	TagBroadcast   = "broadcast"
	TagPersistence = "persistence"
	TagPollControl = "poll_control"
	TagStorage     = "storage"
)

// DefaultTags is the pipeline used when PIPELINE_HANDLERS is unset.
// poll_control is opt-in.
var DefaultTags = []string{TagBroadcast, TagPersistence, TagStorage}

// Handler consumes one worker event. Handlers must be safe for concurrent
// calls; every worker delivers through the same pipeline.
type Handler interface {
	Name() string
	HandleEvent(ctx context.Context, ev models.Event) error
}

// Registry maps handler tags to constructed handlers at boot.
type Registry map[string]Handler

// Pipeline is the ordered handler list shared by all workers.
type Pipeline struct {
	log      *logger.Logger
	handlers []Handler
}

// New builds a pipeline from an already-ordered handler list.
func New(log *logger.Logger, handlers ...Handler) *Pipeline {
	return &Pipeline{
		log:      log.WithComponent("pipeline"),
		handlers: handlers,
	}
}

// Build assembles the pipeline in tag order. Unknown and duplicate tags are
// startup errors.
func Build(log *logger.Logger, tags []string, reg Registry) (*Pipeline, error) {
	seen := make(map[string]bool, len(tags))
	handlers := make([]Handler, 0, len(tags))

	for _, tag := range tags {
		if seen[tag] {
			return nil, errors.Validationf("duplicate pipeline handler %q", tag)
		}
		seen[tag] = true

		h, ok := reg[tag]
		if !ok {
			return nil, errors.Validationf("unknown pipeline handler %q", tag)
		}
		handlers = append(handlers, h)
	}

	return New(log, handlers...), nil
}

// Dispatch delivers ev to every handler in order. Handler errors are logged
// and never stop delivery to the handlers after it.
func (p *Pipeline) Dispatch(ctx context.Context, ev models.Event) {
	for _, h := range p.handlers {
		if err := h.HandleEvent(ctx, ev); err != nil {
			p.log.Warn("event handler failed",
				"handler", h.Name(),
				"event", string(ev.Kind),
				"event_id", ev.ID,
				"camera_id", ev.ExternalID,
				"error", err.Error(),
			)
		}
	}
}

// Len returns the number of handlers.
func (p *Pipeline) Len() int {
	return len(p.handlers)
}

// Names returns handler names in delivery order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.handlers))
	for i, h := range p.handlers {
		names[i] = h.Name()
	}
	return names
}
