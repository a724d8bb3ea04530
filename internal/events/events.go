// Package events publishes collection progress to Kafka so downstream
// consumers can react to new articles without polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/arxiv-collector/internal/config"
	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/observability"
)

// EventTypeFetchCompleted is emitted once per category per collection run.
const EventTypeFetchCompleted = "arxiv.fetch_completed"

// FetchCompleted mirrors one fetch audit entry.
type FetchCompleted struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	RunID          string    `json:"run_id"`
	Mode           string    `json:"mode"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	ArticlesCount  int       `json:"articles_count"`
	MalformedCount int       `json:"malformed_count"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewFetchCompleted builds the event for an audit entry.
func NewFetchCompleted(mode string, entry domain.FetchAuditEntry) FetchCompleted {
	return FetchCompleted{
		EventID:        uuid.New().String(),
		EventType:      EventTypeFetchCompleted,
		RunID:          entry.RunID.String(),
		Mode:           mode,
		Category:       entry.Category,
		Status:         string(entry.Status),
		ArticlesCount:  entry.ArticlesCount,
		MalformedCount: entry.MalformedCount,
		Error:          entry.Error,
		OccurredAt:     entry.FetchedAt.UTC(),
	}
}

// Publisher delivers fetch events.
type Publisher interface {
	Publish(ctx context.Context, event FetchCompleted) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, FetchCompleted) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON, keyed by category so a category's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers and topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event FetchCompleted) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType, err)
	}

	runID := event.RunID
	if runID == "" {
		runID = observability.RunIDFromContext(ctx)
	}

	msg := kafka.Message{
		Key:   []byte(event.Category),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("category", event.Category).
		Msg("fetch event published")
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPublisher returns a KafkaPublisher when publishing is enabled and a
// NopPublisher otherwise.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg, logger)
}
