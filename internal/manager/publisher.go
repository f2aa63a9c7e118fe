package manager

import (
	"context"
	"errors"

	"hazard-alerts/internal/events"
)

// Publisher delivers "alerts modified" snapshots to consumers.
type Publisher interface {
	Publish(ctx context.Context, msg *events.AlertsModified) error
}

// MultiPublisher fans a snapshot out to several publishers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher constructs a MultiPublisher. Nil publishers are skipped.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	out := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &MultiPublisher{publishers: out}
}

// Publish forwards msg to every publisher. A failing publisher does not stop
// delivery to the others; all failures are returned joined.
func (m *MultiPublisher) Publish(ctx context.Context, msg *events.AlertsModified) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
