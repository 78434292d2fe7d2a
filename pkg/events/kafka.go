package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer mirrors published events onto a Kafka topic, keyed by job
// handle so a single consumer group sees one partition's events in order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer configures a batching writer, the same knobs as the
// synchronous-by-default weather-server producer but tuned for gearmand's
// much smaller per-event payloads.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    50,
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			Async:        true,
		},
	}
}

// Publish implements Producer.
func (k *KafkaProducer) Publish(event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Handle),
		Value: value,
	}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaProducer) Close() error {
	return k.writer.Close()
}

var _ Producer = (*KafkaProducer)(nil)
