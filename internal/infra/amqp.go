// README: RabbitMQ connection with bounded exponential-backoff retries.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQP struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewAMQP dials url up to attempts times, doubling the wait from one second
// between tries, and opens one channel.
func NewAMQP(ctx context.Context, url string, attempts int) (*AMQP, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	wait := time.Second
	for i := 1; i <= attempts; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("open amqp channel: %w", chErr)
			}
			return &AMQP{Conn: conn, Channel: ch}, nil
		}
		slog.Warn("amqp connect attempt failed", "action", "amqp_connect", "attempt", i, "error", err)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, fmt.Errorf("connect amqp after %d attempts: %w", attempts, err)
}

func (a *AMQP) Close() error {
	if a.Channel != nil {
		if err := a.Channel.Close(); err != nil {
			return fmt.Errorf("close amqp channel: %w", err)
		}
	}
	if a.Conn != nil {
		if err := a.Conn.Close(); err != nil {
			return fmt.Errorf("close amqp connection: %w", err)
		}
	}
	return nil
}
