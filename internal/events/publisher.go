// Package events publishes session lifecycle events to Kafka. When no
// brokers are configured the publisher degrades to a no-op so the
// service runs without an event bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// DefaultTopic is the Kafka topic for session lifecycle events.
const DefaultTopic = "research.sessions"

// Config holds configuration for the event publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses. Empty disables
	// event publishing.
	Brokers []string
	// Topic is the Kafka topic for session events.
	Topic string
	// BatchSize is the maximum number of messages per batch (0 uses the
	// kafka-go default).
	BatchSize int
	// BatchTimeout is how long to wait for a batch to fill before
	// sending (0 defaults to 10ms).
	BatchTimeout time.Duration
}

// Publisher emits session lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.SessionEvent) error
	Close() error
}

// New creates a publisher for the given configuration. Without brokers
// a no-op publisher is returned.
func New(cfg Config, logger zerolog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Debug().Msg("no kafka brokers configured, session events disabled")
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg, logger)
}

// NoopPublisher drops all events.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, *domain.SessionEvent) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// KafkaPublisher writes session events to a Kafka topic, keyed by
// session ID so one session's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a Kafka-backed publisher.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) *KafkaPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish writes one event to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.SessionEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("session_id", event.SessionID.String()).
		Msg("session event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// buildMessage serializes an event into a Kafka message keyed by
// session ID with the event type in a header.
func buildMessage(event *domain.SessionEvent) (kafka.Message, error) {
	if event == nil {
		return kafka.Message{}, fmt.Errorf("event cannot be nil")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", event.EventType, err)
	}

	return kafka.Message{
		Key:   []byte(event.SessionID.String()),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}, nil
}
