package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"go-pharmacy-catalog/internal/event"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelay copies every bus event to a Kafka topic, keyed by the id of the
// user or product it concerns. Failed writes are logged and dropped.
type KafkaRelay struct {
	writer messageWriter
	bus    event.Bus
}

func NewKafkaRelay(brokers []string, topic string, bus event.Bus) *KafkaRelay {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newRelay(writer, bus)
}

func newRelay(writer messageWriter, bus event.Bus) *KafkaRelay {
	return &KafkaRelay{writer: writer, bus: bus}
}

// Run forwards events until ctx is cancelled, then closes the writer.
func (r *KafkaRelay) Run(ctx context.Context) {
	events, unsubscribe := r.bus.Subscribe()
	defer unsubscribe()
	defer func() {
		if err := r.writer.Close(); err != nil {
			slog.Warn("kafka writer close failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.forward(ctx, e)
		}
	}
}

func (r *KafkaRelay) forward(ctx context.Context, e event.Event) {
	value, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "type", e.Type, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.Subject),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := r.writer.WriteMessages(writeCtx, msg); err != nil {
		slog.Warn("kafka relay write failed", "type", e.Type, "subject", e.Subject, "error", err)
		return
	}
	slog.Debug("event relayed to kafka", "type", e.Type, "subject", e.Subject)
}
