// Package config provides configuration parsing and validation for the hazard-alerts service.
package config

import (
	"fmt"
	"time"

	"hazard-alerts/internal/webhook"
)

// Criteria sources.
const (
	CriteriaSourceFile  = "file"
	CriteriaSourceRedis = "redis"
)

// Config holds all configuration parameters for the hazard-alerts service.
type Config struct {
	KafkaBrokers        string
	NotificationsTopic  string
	ConsumerGroupID     string
	AlertsModifiedTopic string
	Encoding            string
	RedisAddr           string
	PostgresDSN         string

	CriteriaSource       string
	CriteriaFile         string
	CriteriaPollInterval time.Duration

	WebhookURLs string

	HTTPAddr          string
	MetricsInterval   time.Duration
	DeactivationDelay time.Duration

	SimulatedClock bool
	SimulatedStart string
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.NotificationsTopic == "" {
		return fmt.Errorf("notifications-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.AlertsModifiedTopic == "" {
		return fmt.Errorf("alerts-modified-topic cannot be empty")
	}
	if c.Encoding != "json" && c.Encoding != "protobuf" {
		return fmt.Errorf("encoding must be json or protobuf, got %q", c.Encoding)
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}

	switch c.CriteriaSource {
	case CriteriaSourceFile:
		if c.CriteriaFile == "" {
			return fmt.Errorf("criteria-file cannot be empty when criteria-source is file")
		}
	case CriteriaSourceRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr cannot be empty when criteria-source is redis")
		}
		if c.CriteriaPollInterval <= 0 {
			return fmt.Errorf("criteria-poll-interval must be > 0")
		}
	default:
		return fmt.Errorf("criteria-source must be file or redis, got %q", c.CriteriaSource)
	}

	if _, err := webhook.ParseURLs(c.WebhookURLs); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http-addr cannot be empty")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics-interval must be > 0")
	}
	if c.DeactivationDelay < 0 {
		return fmt.Errorf("deactivation-delay cannot be negative")
	}
	if c.SimulatedClock {
		if _, err := c.SimulatedStartTime(time.Time{}); err != nil {
			return err
		}
	}
	return nil
}

// SimulatedStartTime returns the configured simulated start instant, or
// fallback when none is set.
func (c *Config) SimulatedStartTime(fallback time.Time) (time.Time, error) {
	if c.SimulatedStart == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, c.SimulatedStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("simulated-start must be RFC3339: %w", err)
	}
	return t, nil
}
