// Package bus delivers hazard-event notification batches to registered observers.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"hazard-alerts/internal/events"
)

// Observer receives notification batches.
type Observer interface {
	OnNotifications(batch []events.Notification)
}

// Reader yields notification batches from an upstream source.
type Reader interface {
	ReadBatch(ctx context.Context) (*events.NotificationBatch, error)
}

// Bus fans notification batches out to subscribed observers.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
	reader    Reader
}

// New creates a bus fed by reader. reader may be nil when batches are only
// delivered with Deliver.
func New(reader Reader) *Bus {
	return &Bus{reader: reader}
}

// Subscribe registers o. Subscribing an observer twice has no effect.
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.observers {
		if existing == o {
			return
		}
	}
	b.observers = append(b.observers, o)
	slog.Debug("Observer subscribed", "observers", len(b.observers))
}

// Unsubscribe removes o. Unknown observers are ignored.
func (b *Bus) Unsubscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.observers {
		if existing == o {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			slog.Debug("Observer unsubscribed", "observers", len(b.observers))
			return
		}
	}
}

// Deliver hands batch to every current observer. Observers are called
// without holding the bus lock so they may subscribe or unsubscribe.
func (b *Bus) Deliver(batch []events.Notification) {
	if len(batch) == 0 {
		return
	}
	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		o.OnNotifications(batch)
	}
}

// Run reads batches from the reader and delivers them until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	if b.reader == nil {
		<-ctx.Done()
		return nil
	}

	slog.Info("Starting notification bus")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Notification bus stopped")
			return nil
		default:
			batch, err := b.reader.ReadBatch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to read notification batch", "error", err)
				continue
			}

			slog.Debug("Received notification batch",
				"schema_version", batch.SchemaVersion,
				"notifications", len(batch.Notifications),
			)
			b.Deliver(batch.Notifications)
		}
	}
}
