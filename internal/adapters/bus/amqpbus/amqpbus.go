// Package amqpbus publica eventos en un exchange topic de RabbitMQ.
package amqpbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"argus/internal/pkg/backoff"
	"argus/internal/pkg/logger"
)

const publishTimeout = 5 * time.Second

type Bus struct {
	url      string
	exchange string
	log      *logger.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel

	closed    chan struct{}
	reconnect chan struct{}
}

// Connect dials RabbitMQ, declares the topic exchange, and starts a watcher
// that redials on connection loss.
func Connect(url, exchange string, log *logger.Logger) (*Bus, error) {
	b := &Bus{
		url:       url,
		exchange:  exchange,
		log:       log.WithComponent("amqpbus"),
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}
	if err := b.connectOnce(); err != nil {
		return nil, err
	}
	go b.watch()
	return b, nil
}

func (b *Bus) Provider() string { return "amqp" }

// Publish routes the payload by subject on the topic exchange.
func (b *Bus) Publish(ctx context.Context, subject string, payload []byte) error {
	b.mu.RLock()
	conn := b.conn
	ch := b.ch
	b.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("amqp connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("amqp publish channel is not open")
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(pubCtx,
		b.exchange, subject, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         payload,
		})
}

func (b *Bus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.conn == nil || b.conn.IsClosed() {
		return fmt.Errorf("amqp connection is not open")
	}
	return nil
}

func (b *Bus) Close() error {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
	return nil
}

func (b *Bus) connectOnce() error {
	conn, err := amqp.DialConfig(b.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	b.mu.Lock()
	b.conn = conn
	if b.ch != nil {
		_ = b.ch.Close()
	}
	b.ch = ch
	b.mu.Unlock()

	// Either side closing triggers one reconnect signal.
	go func() {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-b.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}
		select {
		case b.reconnect <- struct{}{}:
		default:
		}
	}()

	b.log.Info("rabbitmq connected", "exchange", b.exchange)
	return nil
}

// watch redials after connection loss, backing off between attempts.
func (b *Bus) watch() {
	boff := backoff.New(time.Second, 30*time.Second, 2.0)
	for {
		select {
		case <-b.closed:
			return
		case <-b.reconnect:
		}

		for {
			select {
			case <-b.closed:
				return
			default:
			}

			err := b.connectOnce()
			if err == nil {
				boff.Reset()
				break
			}

			b.log.Warn("rabbitmq reconnect failed", "error", err.Error())
			select {
			case <-b.closed:
				return
			case <-time.After(boff.Next()):
			}
		}
	}
}
