package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"truckslot/internal/config"
	"truckslot/internal/events"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes booking_created events keyed by slot, so all
// messages for one slot land on the same partition.
type KafkaNotifier struct {
	writer MessageWriter
}

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
	}
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

func (n *KafkaNotifier) Deliver(ctx context.Context, p *events.BookingEventPayload) error {
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode booking event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(p.Date + "|" + p.Timeslot),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.EventBookingCreated)},
		},
		Time: p.CreatedAt,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
