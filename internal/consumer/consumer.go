// Package consumer provides Kafka consumer functionality for the hazard
// notifications topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"hazard-alerts/internal/events"
	kafkautil "hazard-alerts/internal/kafka"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer wraps a Kafka reader and decodes notification batches.
type Consumer struct {
	reader messageReader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers, topic, and group ID.
// The consumer is configured for at-least-once delivery semantics.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	reader := kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID))

	slog.Info("Kafka consumer configured",
		"max_wait", kafkautil.MaxPollWait,
		"commit_interval", kafkautil.CommitInterval,
	)

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// ReadBatch reads the next message and decodes it as a NotificationBatch.
// It implements bus.Reader.
func (c *Consumer) ReadBatch(ctx context.Context) (*events.NotificationBatch, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	batch, err := decodeBatch(msg)
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", msg.Offset, err)
	}
	return batch, nil
}

// decodeBatch decodes a JSON or protobuf-Struct encoded batch, selected by
// the content-type header. Messages without the header are JSON.
func decodeBatch(msg kafka.Message) (*events.NotificationBatch, error) {
	payload := msg.Value
	if kafkautil.HeaderValue(msg.Headers, "content-type") == kafkautil.ContentTypeProtobuf {
		var s structpb.Struct
		if err := proto.Unmarshal(msg.Value, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification batch protobuf: %w", err)
		}
		data, err := s.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to convert notification batch protobuf: %w", err)
		}
		payload = data
	}

	var batch events.NotificationBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification batch: %w", err)
	}
	if batch.SchemaVersion == 0 {
		batch.SchemaVersion = events.SchemaVersion
	}
	if batch.SchemaVersion != events.SchemaVersion {
		return nil, fmt.Errorf("unsupported schema_version %d", batch.SchemaVersion)
	}
	return &batch, nil
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully")
	return nil
}
