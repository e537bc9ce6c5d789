// Package messaging publishes order lifecycle events to the message bus.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventOrderStatusChanged is emitted after every successful order transition
const EventOrderStatusChanged = "order.status_changed"

// OrderEvent is the payload published for an order transition
type OrderEvent struct {
	Type             string    `json:"type"`
	OrderID          uuid.UUID `json:"order_id"`
	Reference        string    `json:"reference"`
	MemberNo         string    `json:"member_no"`
	DeliveryBranchID uint      `json:"delivery_branch_id"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	Actor            string    `json:"actor"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher delivers order events
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }

// KafkaPublisher writes events keyed by order id so one order's events stay ordered
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewPublisher builds a Kafka publisher when messaging is enabled, otherwise a noop one
func NewPublisher(cfg *config.MessagingConfig, log *zap.Logger) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("messaging disabled; using noop publisher")
		return NoopPublisher{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{log: log},
		ErrorLogger:  kafkaLogger{log: log},
	}
	log.Info("kafka publisher configured", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type kafkaLogger struct {
	log *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.log.Sugar().Debugf(msg, args...)
}
