package strategy

import (
	"context"
	"fmt"
	"time"

	"hazard-alerts/internal/alerts"
	"hazard-alerts/internal/events"
)

// fakeClock is a fixed, unfrozen clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) IsFrozen() bool          { return false }
func (c *fakeClock) Subscribe(func()) func() { return func() {} }

// fakeManager records scheduling callbacks and keeps a flat alert list.
type fakeManager struct {
	alerts    []alerts.Alert
	scheduled []alerts.Alert
	canceled  []alerts.Alert
}

func (m *fakeManager) ScheduleAlert(a alerts.Alert) {
	m.scheduled = append(m.scheduled, a)
	m.alerts = append(m.alerts, a)
}

func (m *fakeManager) CancelAlert(a alerts.Alert) {
	m.canceled = append(m.canceled, a)
	out := m.alerts[:0]
	for _, existing := range m.alerts {
		if !existing.Same(a) {
			out = append(out, existing)
		}
	}
	m.alerts = out
}

func (m *fakeManager) Alerts() []alerts.Alert {
	out := make([]alerts.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// fakeAccessor serves events from a map.
type fakeAccessor struct {
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
	e, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("hazard event not found: %s", eventID)
	}
	return &e, nil
}

// fakeCriteria maps hazard types to criteria.
type fakeCriteria map[string][]alerts.Criterion

func (f fakeCriteria) CriteriaFor(hazardType string) []alerts.Criterion {
	return f[hazardType]
}
