// Package kafka wraps segmentio/kafka-go for publishing JSON-encoded
// analytics events.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
)

// Event is the unit of data published to Kafka. Key is used for partition
// hashing and Value is JSON-serialised.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON-encoded events to a Kafka topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	logger  *slog.Logger
}

// NewProducer creates a Producer for the given topic. No connection is made
// until the first publish.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		logger:  slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes events in a single call.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return fmt.Errorf("marshaling event value: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(event.Key),
			Value: value,
		})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish", "count", len(messages), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("published", "count", len(messages))
	return nil
}

// Ping dials the first reachable broker. Used by the readiness check.
func (p *Producer) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		conn.Close()
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return fmt.Errorf("dialing kafka brokers: %w", errors.Join(errs...))
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
