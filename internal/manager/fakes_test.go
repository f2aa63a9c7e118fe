package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hazard-alerts/internal/alerts"
	"hazard-alerts/internal/bus"
	"hazard-alerts/internal/events"
)

// fakeClock is a settable clock whose discontinuities are fired by the test.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	frozen   bool
	handlers map[int]func()
	nextID   int
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, handlers: make(map[int]func())}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) IsFrozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

func (c *fakeClock) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// change sets the clock and notifies subscribers.
func (c *fakeClock) change(now time.Time, frozen bool) {
	c.mu.Lock()
	c.now = now
	c.frozen = frozen
	handlers := make([]func(), 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (c *fakeClock) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// fakeBus records the subscribed observer.
type fakeBus struct {
	mu       sync.Mutex
	observer bus.Observer
}

func (b *fakeBus) Subscribe(o bus.Observer) {
	b.mu.Lock()
	b.observer = o
	b.mu.Unlock()
}

func (b *fakeBus) Unsubscribe(o bus.Observer) {
	b.mu.Lock()
	if b.observer == o {
		b.observer = nil
	}
	b.mu.Unlock()
}

func (b *fakeBus) subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observer != nil
}

func (b *fakeBus) deliver(batch ...events.Notification) {
	b.mu.Lock()
	o := b.observer
	b.mu.Unlock()
	if o != nil {
		o.OnNotifications(batch)
	}
}

// fakePublisher records every published snapshot.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []*events.AlertsModified
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, msg *events.AlertsModified) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *fakePublisher) last() *events.AlertsModified {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	return p.msgs[len(p.msgs)-1]
}

// fakeAccessor serves hazard events from a map.
type fakeAccessor struct {
	mu      sync.Mutex
	events  map[string]events.HazardEvent
	listErr error
}

func newFakeAccessor(list ...events.HazardEvent) *fakeAccessor {
	f := &fakeAccessor{events: make(map[string]events.HazardEvent)}
	for _, e := range list {
		f.events[e.EventID] = e
	}
	return f
}

func (f *fakeAccessor) Events(ctx context.Context) ([]events.HazardEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]events.HazardEvent, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAccessor) EventByID(ctx context.Context, eventID string) (*events.HazardEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("hazard event not found: %s", eventID)
	}
	return &e, nil
}

func (f *fakeAccessor) failListing() {
	f.mu.Lock()
	f.listErr = errors.New("connection refused")
	f.mu.Unlock()
}

// fakeCriteria maps hazard types to criteria.
type fakeCriteria map[string][]alerts.Criterion

func (f fakeCriteria) CriteriaFor(hazardType string) []alerts.Criterion {
	return f[hazardType]
}

// fakeMetrics counts calls.
type fakeMetrics struct {
	mu       sync.Mutex
	received int
	errors   int
	custom   map[string]uint64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{custom: make(map[string]uint64)}
}

func (m *fakeMetrics) RecordReceived() {
	m.mu.Lock()
	m.received++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordPublished() {}

func (m *fakeMetrics) RecordError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordProcessed(time.Duration) {}

func (m *fakeMetrics) IncrementCustom(name string) { m.AddCustom(name, 1) }

func (m *fakeMetrics) AddCustom(name string, value uint64) {
	m.mu.Lock()
	m.custom[name] += value
	m.mu.Unlock()
}

func (m *fakeMetrics) customValue(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custom[name]
}

func (m *fakeMetrics) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors
}

// eventually polls cond until it holds or the timeout elapses.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
