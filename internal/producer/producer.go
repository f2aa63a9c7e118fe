// Package producer publishes "alerts modified" snapshots to Kafka.
package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"hazard-alerts/internal/events"
	kafkautil "hazard-alerts/internal/kafka"
)

// partitionKey keeps every snapshot on one partition so consumers see them in order.
const partitionKey = "hazard-alerts"

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a Kafka writer. It implements manager.Publisher.
type Producer struct {
	writer   messageWriter
	topic    string
	encoding Encoding
}

// NewProducer creates a new Kafka producer with the specified brokers, topic and encoding.
// The producer is configured for at-least-once delivery semantics with synchronous writes.
func NewProducer(brokers string, topic string, encoding Encoding) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	if err := encoding.Validate(); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
		"encoding", encoding,
	)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"write_timeout", kafkautil.WriteTimeout,
		"required_acks", "RequireOne",
		"async", false,
		"partition_key", partitionKey,
	)

	return &Producer{
		writer:   writer,
		topic:    topic,
		encoding: encoding,
	}, nil
}

// Publish encodes msg and writes it to Kafka.
func (p *Producer) Publish(ctx context.Context, msg *events.AlertsModified) error {
	payload, err := p.encoding.encode(msg)
	if err != nil {
		slog.Error("Failed to encode alerts snapshot",
			"notification_id", msg.NotificationID,
			"error", err,
		)
		return err
	}

	km := kafka.Message{
		Key:   []byte(partitionKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(p.encoding.contentType())},
			{Key: "schema_version", Value: []byte(fmt.Sprintf("%d", msg.SchemaVersion))},
			{Key: "notification_id", Value: []byte(msg.NotificationID)},
		},
		Time: msg.PublishedAt,
	}

	if err := p.writer.WriteMessages(ctx, km); err != nil {
		slog.Error("Failed to write message to Kafka",
			"notification_id", msg.NotificationID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Debug("Published alerts snapshot",
		"notification_id", msg.NotificationID,
		"alerts", len(msg.Alerts),
	)
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	slog.Info("Kafka producer closed successfully")
	return nil
}
