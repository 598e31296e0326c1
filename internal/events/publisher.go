package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const EventOrderPaid = "order.paid"

type OrderPaidItem struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
	Remaining int    `json:"remaining_quantity"`
}

type OrderPaidEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
	PaidAt      time.Time       `json:"paid_at"`
	Stock       []OrderPaidItem `json:"stock"`
}

type Publisher interface {
	PublishOrderPaid(ctx context.Context, evt OrderPaidEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

// PublishOrderPaid writes one message keyed by order id so every event for an
// order lands on the same partition.
func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, evt OrderPaidEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", EventOrderPaid, err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.OrderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPaid)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventOrderPaid, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishOrderPaid(context.Context, OrderPaidEvent) error { return nil }

func (Noop) Close() error { return nil }

// New picks the Kafka publisher when brokers are configured.
func New(topic string, brokers []string) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewKafkaPublisher(topic, brokers...)
}
