// Package handlers holds the side-effect consumers the event pipeline fans
// out to. Each one is thin: project the event, hit one collaborator, report.
package handlers

import (
	"context"
	"encoding/json"

	eventsv0 "argus/internal/contracts/events/v0"
	"argus/internal/models"
	"argus/internal/pkg/errors"
	"argus/internal/pkg/logger"
	"argus/internal/ports"
)

// DefaultSubjectPrefix is where camera events land on the bus. The full
// subject is <prefix>.<external_id>.
const DefaultSubjectPrefix = "argus.snapshots"

// Broadcast publishes the v0 event envelope to the configured bus so other
// services (frontends, alerting) can follow camera activity live.
type Broadcast struct {
	bus    ports.EventBus
	prefix string
	log    *logger.Logger
}

func NewBroadcast(bus ports.EventBus, prefix string, log *logger.Logger) *Broadcast {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Broadcast{
		bus:    bus,
		prefix: prefix,
		log:    log.WithComponent("broadcast"),
	}
}

func (b *Broadcast) Name() string { return "broadcast" }

func (b *Broadcast) HandleEvent(ctx context.Context, ev models.Event) error {
	payload, err := json.Marshal(eventsv0.FromEvent(ev))
	if err != nil {
		return errors.Wrap(err, "broadcast.encode", "encoding event envelope")
	}

	subject := b.prefix + "." + ev.ExternalID
	if err := b.bus.Publish(ctx, subject, payload); err != nil {
		return errors.Wrap(err, "broadcast.publish", "publishing event to "+b.bus.Provider())
	}

	b.log.Debug("event broadcast",
		"subject", subject,
		"event", string(ev.Kind),
		"event_id", ev.ID,
	)
	return nil
}
