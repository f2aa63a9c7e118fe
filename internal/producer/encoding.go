package producer

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"hazard-alerts/internal/events"
	kafkautil "hazard-alerts/internal/kafka"
)

// Encoding selects the wire format of published snapshots.
type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingProtobuf Encoding = "protobuf"
)

// Validate rejects unknown encodings.
func (e Encoding) Validate() error {
	switch e {
	case EncodingJSON, EncodingProtobuf:
		return nil
	default:
		return fmt.Errorf("unknown encoding %q", e)
	}
}

func (e Encoding) contentType() string {
	if e == EncodingProtobuf {
		return kafkautil.ContentTypeProtobuf
	}
	return kafkautil.ContentTypeJSON
}

func (e Encoding) encode(msg *events.AlertsModified) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alerts snapshot: %w", err)
	}
	if e != EncodingProtobuf {
		return payload, nil
	}
	return toStruct(payload)
}

// toStruct re-encodes a JSON document as a google.protobuf.Struct.
func toStruct(doc []byte) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode alerts snapshot: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build protobuf struct: %w", err)
	}
	payload, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alerts snapshot protobuf: %w", err)
	}
	return payload, nil
}
