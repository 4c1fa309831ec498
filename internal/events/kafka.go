package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaForwarder copies every ticket event to a Kafka topic, best effort.
type KafkaForwarder struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaForwarder returns a forwarder; with no brokers or topic it is a no-op.
func NewKafkaForwarder(brokers []string, topic string, logger *zap.Logger) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &KafkaForwarder{logger: logger}
	if len(brokers) == 0 || topic == "" {
		return f
	}
	f.writer = &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka: deliver ticket events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return f
}

// Enabled reports whether events are actually forwarded.
func (f *KafkaForwarder) Enabled() bool {
	return f != nil && f.writer != nil
}

// Register subscribes the forwarder to every event on d.
func (f *KafkaForwarder) Register(d Dispatcher) {
	if !f.Enabled() || d == nil {
		return
	}
	d.SubscribeAll(f.forward)
}

func (f *KafkaForwarder) forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Keyed by ticket so one ticket's events stay ordered within a partition.
	return f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TicketID),
		Value: body,
	})
}

// Close flushes and closes the writer.
func (f *KafkaForwarder) Close() error {
	if !f.Enabled() {
		return nil
	}
	return f.writer.Close()
}
