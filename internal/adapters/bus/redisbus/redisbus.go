// Package redisbus publica eventos vía Redis pub/sub.
package redisbus

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Bus struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) Provider() string { return "redis" }

// Publish usa el subject como canal pub/sub. Sin suscriptores el mensaje se
// descarta.
func (b *Bus) Publish(ctx context.Context, subject string, payload []byte) error {
	return b.rdb.Publish(ctx, subject, payload).Err()
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}
