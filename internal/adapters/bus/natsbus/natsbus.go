// Package natsbus publica eventos en NATS core (at-most-once).
package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"argus/internal/pkg/logger"
)

type Bus struct {
	conn *nats.Conn
	log  *logger.Logger
}

// Connect dials NATS with unlimited reconnects; the client buffers publishes
// while a reconnect is in flight.
func Connect(url, name string, log *logger.Logger) (*Bus, error) {
	log = log.WithComponent("natsbus")

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &Bus{conn: conn, log: log}, nil
}

func (b *Bus) Provider() string { return "nats" }

func (b *Bus) Publish(ctx context.Context, subject string, payload []byte) error {
	return b.conn.Publish(subject, payload)
}

func (b *Bus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats connection is down")
	}
	return b.conn.FlushWithContext(ctx)
}

func (b *Bus) Close() error {
	b.conn.Close()
	return nil
}
