package ports

import "context"

// EventBus: implementaciones (redis, nats, amqp).
type EventBus interface {
	Provider() string

	Publish(ctx context.Context, subject string, payload []byte) error
	Ping(ctx context.Context) error
	Close() error
}
