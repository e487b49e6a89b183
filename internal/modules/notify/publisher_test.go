package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"drivebook/internal/types"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	sent       []published
	publishErr error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishOffer(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "drivebook.bookings")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "drivebook.bookings:topic" {
		t.Fatalf("declared = %v", ch.declared)
	}

	err = p.PublishOffer(context.Background(), OfferMessage{BookingID: "b1", ResponseID: "r1", Pool: types.PoolLead, CandidateID: "l1", PackageType: types.PackageLocal})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "drivebook.bookings" || got.key != "booking.offer.lead" {
		t.Fatalf("exchange/key = %s/%s", got.exchange, got.key)
	}
	if got.msg.CorrelationId == "" || got.msg.ContentType != "application/json" {
		t.Fatalf("publishing = %+v", got.msg)
	}

	var body OfferMessage
	if err := json.Unmarshal(got.msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.CorrelationID != got.msg.CorrelationId || body.CandidateID != "l1" {
		t.Fatalf("body = %+v", body)
	}
}

func TestPublishAllocationError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, _ := NewAMQPPublisher(ch, "x")
	err := p.PublishAllocation(context.Background(), AllocationMessage{BookingID: "b1", Pool: types.PoolDriver, CandidateID: "d1"})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if AllocationRoutingKey(types.PoolDriver) != "booking.allocated.driver" {
		t.Fatalf("routing key = %s", AllocationRoutingKey(types.PoolDriver))
	}
}
