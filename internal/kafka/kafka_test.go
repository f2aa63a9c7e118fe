package kafka

import (
	"reflect"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		want    []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple", "a:9092,b:9092", []string{"a:9092", "b:9092"}},
		{"with spaces", "a:9092, b:9092 ", []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseBrokers(tt.brokers); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseBrokers(%q) = %v, want %v", tt.brokers, got, tt.want)
			}
		})
	}
}

func TestValidateConsumerParams(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		group   string
		errMsg  string
	}{
		{"valid", "localhost:9092", "hazard.notifications", "g", ""},
		{"empty brokers", "", "hazard.notifications", "g", "brokers cannot be empty"},
		{"empty topic", "localhost:9092", "", "g", "topic cannot be empty"},
		{"empty groupID", "localhost:9092", "hazard.notifications", "", "groupID cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConsumerParams(tt.brokers, tt.topic, tt.group)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateConsumerParams() error = %v, want nil", err)
				}
				return
			}
			if err == nil || err.Error() != tt.errMsg {
				t.Errorf("ValidateConsumerParams() error = %v, want %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateProducerParams(t *testing.T) {
	if err := ValidateProducerParams("", "t"); err == nil || err.Error() != "brokers cannot be empty" {
		t.Errorf("empty brokers error = %v", err)
	}
	if err := ValidateProducerParams("localhost:9092", ""); err == nil || err.Error() != "topic cannot be empty" {
		t.Errorf("empty topic error = %v", err)
	}
	if err := ValidateProducerParams("localhost:9092", "t"); err != nil {
		t.Errorf("valid params error = %v", err)
	}
}

func TestNewReaderConfig(t *testing.T) {
	cfg := NewReaderConfig([]string{"localhost:9092"}, "hazard.notifications", "hazard-alerts-group")
	if cfg.Topic != "hazard.notifications" || cfg.GroupID != "hazard-alerts-group" {
		t.Errorf("config topic/group = %s/%s", cfg.Topic, cfg.GroupID)
	}
	if cfg.StartOffset != kafka.FirstOffset {
		t.Errorf("StartOffset = %d, want FirstOffset", cfg.StartOffset)
	}
	if cfg.CommitInterval != CommitInterval {
		t.Errorf("CommitInterval = %v, want %v", cfg.CommitInterval, CommitInterval)
	}
}

func TestHeaderValue(t *testing.T) {
	headers := []kafka.Header{
		{Key: "content-type", Value: []byte(ContentTypeProtobuf)},
		{Key: "schema_version", Value: []byte("1")},
	}
	if got := HeaderValue(headers, "content-type"); got != ContentTypeProtobuf {
		t.Errorf("content-type = %q", got)
	}
	if got := HeaderValue(headers, "missing"); got != "" {
		t.Errorf("missing header = %q, want empty", got)
	}
}
