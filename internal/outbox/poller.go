package outbox

import (
	"context"
	"log"
	"time"

	"github.com/fjod/go_shop/internal/store"
	"github.com/segmentio/kafka-go"
)

// messageWriter is satisfied by *kafka.Writer; tests substitute a fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Poller drains the order-events outbox to Kafka. Events are written in the
// same transaction as the state change they describe, so delivery here is
// at-least-once and consumers must dedupe on order id.
type Poller struct {
	tick   time.Duration
	batch  int
	store  store.Store
	writer messageWriter
}

func NewPoller(st store.Store, brokers ...string) *Poller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Poller{tick: time.Second, batch: 100, store: st, writer: w}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.publishPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) Close() {
	if err := p.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}

func (p *Poller) publishPending(ctx context.Context) {
	events, err := p.store.GetUnpublishedEvents(ctx, p.batch)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		msg := kafka.Message{
			Key:   []byte(event.OrderID.String()), // order id for partition ordering
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
			},
		}

		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			log.Printf("failed to publish event id = %v with error %v", event.ID, err)
			continue
		}

		if err := p.store.MarkEventPublished(ctx, event.ID); err != nil {
			log.Printf("failed to mark event as published id = %v with error %v", event.ID, err)
			continue
		}
	}
}
