// Package webhook delivers alerts-modified snapshots to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hazard-alerts/internal/events"
)

// Publisher POSTs every snapshot as JSON to each configured URL.
// It implements manager.Publisher.
type Publisher struct {
	urls       []string
	httpClient *http.Client
	retry      RetryConfig
}

// ParseURLs splits a comma-separated URL list and validates each entry.
func ParseURLs(list string) ([]string, error) {
	var out []string
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !isValidURL(raw) {
			return nil, fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", raw)
		}
		out = append(out, raw)
	}
	return out, nil
}

// NewPublisher creates a publisher for urls with the default retry policy.
func NewPublisher(urls []string) (*Publisher, error) {
	return NewPublisherWithRetry(urls, DefaultRetryConfig())
}

// NewPublisherWithRetry creates a publisher for urls with a custom retry policy.
func NewPublisherWithRetry(urls []string, retry RetryConfig) (*Publisher, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("webhook urls cannot be empty")
	}
	for _, u := range urls {
		if !isValidURL(u) {
			return nil, fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", u)
		}
	}

	slog.Info("Webhook publisher configured",
		"urls", len(urls),
		"max_retries", retry.MaxRetries,
	)

	return &Publisher{
		urls: urls,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: retry,
	}, nil
}

// Publish sends msg to every URL. Failures for one URL do not stop delivery
// to the others; all failures are returned joined.
func (p *Publisher) Publish(ctx context.Context, msg *events.AlertsModified) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var errs []error
	for _, u := range p.urls {
		target := u
		err := withRetry(ctx, p.retry, "webhook "+target, func() error {
			return p.post(ctx, target, body)
		})
		if err != nil {
			slog.Error("Failed to send alerts snapshot to webhook",
				"webhook_url", target,
				"notification_id", msg.NotificationID,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		slog.Debug("Sent alerts snapshot to webhook",
			"webhook_url", target,
			"notification_id", msg.NotificationID,
			"alerts", len(msg.Alerts),
		)
	}
	return errors.Join(errs...)
}

func (p *Publisher) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: target, Code: resp.StatusCode}
	}
	return nil
}

func isValidURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
