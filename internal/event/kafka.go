package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"go-user-admin/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder ships bus events to a Kafka topic, keyed by event subject so
// that all changes to one user land on the same partition.
type KafkaForwarder struct {
	writer  messageWriter
	metrics *metrics.Metrics
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaForwarder(writer messageWriter) *KafkaForwarder {
	return &KafkaForwarder{writer: writer}
}

func (f *KafkaForwarder) SetMetrics(m *metrics.Metrics) {
	f.metrics = m
}

// Run drains events until ctx is cancelled or the channel is closed.
func (f *KafkaForwarder) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			err := f.forward(ctx, e)
			f.metrics.RecordEventForwarded(err == nil)
			if err != nil {
				slog.Error("failed to forward event to kafka", "type", e.Type, "subject", e.Subject, "error", err)
			}
		}
	}
}

func (f *KafkaForwarder) forward(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.Subject),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	return nil
}

func (f *KafkaForwarder) Close() error {
	if err := f.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
