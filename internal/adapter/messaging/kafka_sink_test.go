package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/storefront/internal/core/domain"
)

type fakeProducer struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeProducer) WriteMessage(_ context.Context, msg kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotificationSink_Deliver(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewKafkaNotificationSink(producer)
	n := domain.Notification{
		ID:        9,
		UserID:    42,
		Type:      domain.NotificationRestock,
		Title:     "Back in stock",
		Content:   "'Lamp' is back in stock.",
		CreatedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	if err := sink.Deliver(context.Background(), n); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(producer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(producer.messages))
	}
	msg := producer.messages[0]
	if string(msg.Key) != "42" {
		t.Errorf("expected key 42, got %q", msg.Key)
	}
	var decoded domain.Notification
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.ID != 9 || decoded.Type != domain.NotificationRestock {
		t.Errorf("unexpected payload: %+v", decoded)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "RESTOCK" {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	if err := sink.Close(); err != nil || !producer.closed {
		t.Errorf("expected producer closed, err=%v", err)
	}
}

func TestKafkaNotificationSink_WrapsWriteErrors(t *testing.T) {
	broker := errors.New("leader not available")
	sink := NewKafkaNotificationSink(&fakeProducer{err: broker})

	err := sink.Deliver(context.Background(), domain.Notification{ID: 1})
	if !errors.Is(err, broker) {
		t.Fatalf("expected wrapped broker error, got: %v", err)
	}
}
