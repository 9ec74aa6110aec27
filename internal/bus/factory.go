package bus

import (
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"argus/internal/adapters/bus/amqpbus"
	"argus/internal/adapters/bus/natsbus"
	"argus/internal/adapters/bus/redisbus"
	"argus/internal/pkg/logger"
)

// NewBus builds the event bus selected by BUS_PROVIDER. Defaults to redis,
// which the stack already runs.
func NewBus(log *logger.Logger) (Bus, error) {
	provider := os.Getenv("BUS_PROVIDER")
	if provider == "" {
		provider = "redis"
	}

	switch provider {
	case "redis":
		addr, err := requireEnv("REDIS_ADDR")
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		return redisbus.New(rdb), nil

	case "nats":
		url := os.Getenv("NATS_URL")
		if url == "" {
			url = nats.DefaultURL
		}
		return natsbus.Connect(url, "argusd", log)

	case "amqp":
		url, err := requireEnv("AMQP_URL")
		if err != nil {
			return nil, err
		}
		exchange := os.Getenv("AMQP_EXCHANGE")
		if exchange == "" {
			exchange = "argus.events"
		}
		return amqpbus.Connect(url, exchange, log)

	default:
		return nil, fmt.Errorf("unknown bus provider: %s", provider)
	}
}

func requireEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", fmt.Errorf("missing env: %s", k)
	}
	return v, nil
}
