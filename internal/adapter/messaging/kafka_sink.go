package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	batchTimeout = 10 * time.Millisecond
	batchSize    = 100
)

// Producer is the subset of a traced Kafka writer the sink needs.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaNotificationSink publishes stored notifications to a topic keyed by
// user id, so one user's notifications stay ordered within a partition.
type KafkaNotificationSink struct {
	producer Producer
}

func NewKafkaNotificationSink(producer Producer) *KafkaNotificationSink {
	return &KafkaNotificationSink{producer: producer}
}

// NewTracedProducer builds a kafka-go writer wrapped so that the trace
// context travels in message headers.
func NewTracedProducer(brokers []string, topic string, tp trace.TracerProvider) (Producer, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		BatchSize:    batchSize,
		RequiredAcks: kafka.RequireOne,
	}
	w, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(topic),
			attribute.String("messaging.kafka.client_id", config.ServiceName),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka writer: %w", err)
	}
	return w, nil
}

func (s *KafkaNotificationSink) Deliver(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification %d: %w", n.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(n.UserID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "notification-type", Value: []byte(n.Type)},
		},
		Time: n.CreatedAt,
	}
	if err := s.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("publish notification %d: %w", n.ID, err)
	}
	return nil
}

func (s *KafkaNotificationSink) Close() error {
	return s.producer.Close()
}

// NoopNotificationSink keeps notifications in storage only.
type NoopNotificationSink struct{}

func (NoopNotificationSink) Deliver(context.Context, domain.Notification) error { return nil }
