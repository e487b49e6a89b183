// README: Publishes booking offers and allocations to a RabbitMQ topic exchange.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"drivebook/internal/logger"
	"drivebook/internal/types"
)

// OfferMessage tells one candidate a booking is open for them.
type OfferMessage struct {
	CorrelationID  string            `json:"correlation_id"`
	BookingID      types.ID          `json:"booking_id"`
	ResponseID     types.ID          `json:"response_id"`
	Pool           types.Pool        `json:"pool"`
	CandidateID    types.ID          `json:"candidate_id"`
	PackageType    types.PackageType `json:"package_type"`
	PickupLocation string            `json:"pickup_location"`
	DropLocation   string            `json:"drop_location"`
	StartAt        time.Time         `json:"start_at"`
	SentAt         time.Time         `json:"sent_at"`
}

// AllocationMessage announces the candidate chosen for a booking.
type AllocationMessage struct {
	CorrelationID string     `json:"correlation_id"`
	BookingID     types.ID   `json:"booking_id"`
	Pool          types.Pool `json:"pool"`
	CandidateID   types.ID   `json:"candidate_id"`
	AllocatedAt   time.Time  `json:"allocated_at"`
}

type Publisher interface {
	PublishOffer(ctx context.Context, msg OfferMessage) error
	PublishAllocation(ctx context.Context, msg AllocationMessage) error
}

// Channel is the slice of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewAMQPPublisher declares the durable topic exchange once.
func NewAMQPPublisher(ch Channel, exchange string) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}, nil
}

func OfferRoutingKey(pool types.Pool) string { return "booking.offer." + string(pool) }

func AllocationRoutingKey(pool types.Pool) string { return "booking.allocated." + string(pool) }

func (p *AMQPPublisher) PublishOffer(ctx context.Context, msg OfferMessage) error {
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}
	return p.publish(ctx, "publish_offer", OfferRoutingKey(msg.Pool), msg.CorrelationID, msg.BookingID, msg)
}

func (p *AMQPPublisher) PublishAllocation(ctx context.Context, msg AllocationMessage) error {
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}
	return p.publish(ctx, "publish_allocation", AllocationRoutingKey(msg.Pool), msg.CorrelationID, msg.BookingID, msg)
}

func (p *AMQPPublisher) publish(ctx context.Context, action, key, correlationID string, bookingID types.ID, msg any) error {
	log := logger.FromContext(ctx).With(
		slog.String("action", action),
		slog.String("correlation_id", correlationID),
		slog.String("booking_id", string(bookingID)),
	)
	body, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal message", slog.Any("error", err))
		return fmt.Errorf("marshal %s: %w", action, err)
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: correlationID,
		Timestamp:     time.Now(),
		Body:          body,
	})
	p.mu.Unlock()
	if err != nil {
		log.Error("failed to publish message", slog.String("routing_key", key), slog.Any("error", err))
		return fmt.Errorf("publish %s: %w", action, err)
	}
	log.Debug("message published", slog.String("routing_key", key))
	return nil
}

// Nop drops every message. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishOffer(context.Context, OfferMessage) error { return nil }

func (Nop) PublishAllocation(context.Context, AllocationMessage) error { return nil }
