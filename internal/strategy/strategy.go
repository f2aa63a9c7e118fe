// Package strategy decides which alerts hazard-event lifecycle changes require.
// A strategy never mutates scheduler state itself; it calls back into the
// alerts manager through the Manager interface.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hazard-alerts/internal/alerts"
	"hazard-alerts/internal/clock"
	"hazard-alerts/internal/events"
)

// EventAccessor reads hazard events from the event store.
type EventAccessor interface {
	Events(ctx context.Context) ([]events.HazardEvent, error)
	EventByID(ctx context.Context, eventID string) (*events.HazardEvent, error)
}

// CriteriaSource returns the criteria configured for a hazard type.
type CriteriaSource interface {
	CriteriaFor(hazardType string) []alerts.Criterion
}

// Manager is the part of the alerts manager a strategy calls back into.
type Manager interface {
	ScheduleAlert(a alerts.Alert)
	CancelAlert(a alerts.Alert)
	// Alerts returns scheduled and active alerts.
	Alerts() []alerts.Alert
}

// UnexpectedStatusError reports a hazard status no policy branch handles.
// It signals an upstream invariant violation.
type UnexpectedStatusError struct {
	EventID string
	Status  events.Status
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected hazard event status %q for event %s", e.Status, e.EventID)
}

// Options tunes alert generation.
type Options struct {
	// DeactivationDelay is added to the hazard expiration to obtain the
	// deactivation time. Zero deactivates at expiration.
	DeactivationDelay time.Duration
}

// ExpirationStrategy generates expiration reminders for issued hazard events.
// It is bound to exactly one notification kind.
type ExpirationStrategy struct {
	kind     events.Kind
	accessor EventAccessor
	criteria CriteriaSource
	clock    clock.Clock
	opts     Options
	registry *registry
}

// NewExpirationStrategy creates a strategy for notifications of kind.
func NewExpirationStrategy(kind events.Kind, accessor EventAccessor, criteria CriteriaSource, clk clock.Clock, opts Options) *ExpirationStrategy {
	return &ExpirationStrategy{
		kind:     kind,
		accessor: accessor,
		criteria: criteria,
		clock:    clk,
		opts:     opts,
		registry: newRegistry(),
	}
}

// Kind returns the notification kind this strategy handles.
func (s *ExpirationStrategy) Kind() events.Kind {
	return s.kind
}

// InitializeAlerts generates alerts for every known event that has not ended
// or elapsed and has an expiration. The registry is rebuilt from scratch.
func (s *ExpirationStrategy) InitializeAlerts(ctx context.Context, m Manager) error {
	s.registry.reset()
	list, err := s.accessor.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to list hazard events: %w", err)
	}

	for i := range list {
		event := &list[i]
		if event.Status.EndedOrElapsed() || !event.HasExpiration() {
			continue
		}
		s.generateAlertsForIssuedHazardEvent(m, event)
	}

	slog.Info("Initialized alerts",
		"kind", s.kind,
		"events", len(list),
		"alerted_events", s.registry.size(),
	)
	return nil
}

// AddAlerts processes each event as if a STORE notification had arrived for it.
func (s *ExpirationStrategy) AddAlerts(ctx context.Context, m Manager, eventIDs []string) error {
	var errs []error
	for _, id := range eventIDs {
		event, err := s.accessor.EventByID(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get hazard event %s: %w", id, err))
			continue
		}
		if err := s.CheckForNewAlerts(m, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UpdateAlerts applies one notification.
func (s *ExpirationStrategy) UpdateAlerts(ctx context.Context, m Manager, n events.Notification) error {
	switch n.Change {
	case events.ChangeStore:
		return s.CheckForNewAlerts(m, &n.Event)
	case events.ChangeDelete:
		s.cancelAlertsFor(m, n.Event.EventID)
		s.registry.remove(n.Event.EventID)
		return nil
	case events.ChangeUpdate:
		// Interoperability-only updates never regenerate alerts.
		return nil
	default:
		slog.Warn("Ignoring notification with unknown change",
			"notification_id", n.NotificationID,
			"event_id", n.Event.EventID,
			"change", n.Change,
		)
		return nil
	}
}

// Reset empties the alerted-events registry. The manager calls it whenever it
// discards every alert.
func (s *ExpirationStrategy) Reset() {
	s.registry.reset()
}

// CheckForNewAlerts reconciles the alerts of one event with its current state.
func (s *ExpirationStrategy) CheckForNewAlerts(m Manager, event *events.HazardEvent) error {
	switch {
	case event.Status.IssuedButNotEndedOrElapsed():
		prev, ok := s.registry.get(event.EventID)
		if !ok {
			s.generateAlertsForIssuedHazardEvent(m, event)
			return nil
		}
		if !prev.ExpirationTime.Equal(event.ExpirationTime) {
			slog.Info("Hazard expiration changed, regenerating alerts",
				"event_id", event.EventID,
				"old_expiration", prev.ExpirationTime,
				"new_expiration", event.ExpirationTime,
			)
			s.cancelAlertsFor(m, event.EventID)
			s.registry.remove(event.EventID)
			s.generateAlertsForIssuedHazardEvent(m, event)
		}
		return nil

	case event.Status.EndedOrElapsed():
		s.cancelAlertsFor(m, event.EventID)
		s.registry.remove(event.EventID)
		return nil

	case event.Status == events.StatusProposed, event.Status.Pending():
		return nil

	default:
		return &UnexpectedStatusError{EventID: event.EventID, Status: event.Status}
	}
}

// SupersededAlerts returns the active alerts that activating a replaces:
// those of the same kind for the same event.
func (s *ExpirationStrategy) SupersededAlerts(a alerts.Alert, active []alerts.Alert) []alerts.Alert {
	var out []alerts.Alert
	for _, other := range active {
		if other.Kind == a.Kind && other.EventID == a.EventID {
			out = append(out, other)
		}
	}
	return out
}

func (s *ExpirationStrategy) generateAlertsForIssuedHazardEvent(m Manager, event *events.HazardEvent) {
	for _, a := range s.GenerateAlerts(event) {
		m.ScheduleAlert(a)
	}
}

// GenerateAlerts computes the alerts an issued event needs right now,
// registering the event when criteria apply. Nothing is scheduled.
func (s *ExpirationStrategy) GenerateAlerts(event *events.HazardEvent) []alerts.Alert {
	if !event.HasExpiration() {
		slog.Error("Issued hazard event has no expiration time",
			"event_id", event.EventID,
			"status", event.Status,
		)
		return nil
	}

	now := s.clock.Now()
	criteria := s.criteria.CriteriaFor(event.HazardType())
	if len(criteria) == 0 {
		slog.Debug("No alert criteria for hazard type",
			"event_id", event.EventID,
			"hazard_type", event.HazardType(),
		)
		return nil
	}

	s.registry.put(*event)
	deactivation := alerts.DeactivationTime(event.ExpirationTime, s.opts.DeactivationDelay)

	var generated []alerts.Alert
	for _, c := range criteria {
		activation := alerts.ActivationTime(c, event.ExpirationTime, now)
		generated = append(generated, alerts.BuildAlerts(c, event, activation, deactivation)...)
	}

	if needsImmediateAlert(generated, now) {
		activation := alerts.ActivationTime(alerts.Immediate, event.ExpirationTime, now)
		generated = append(generated, alerts.BuildAlerts(alerts.Immediate, event, activation, deactivation)...)
	}

	generated = removeStale(generated, now)
	generated = removeSuperseded(generated, now)

	slog.Debug("Generated alerts",
		"event_id", event.EventID,
		"hazard_type", event.HazardType(),
		"count", len(generated),
	)
	return generated
}

func (s *ExpirationStrategy) cancelAlertsFor(m Manager, eventID string) {
	for _, a := range m.Alerts() {
		if a.EventID == eventID {
			m.CancelAlert(a)
		}
	}
}

// needsImmediateAlert reports whether console alerts were generated and none
// of them is due yet.
func needsImmediateAlert(list []alerts.Alert, now time.Time) bool {
	consoles := 0
	for _, a := range list {
		if a.Kind != alerts.KindConsoleTimer {
			continue
		}
		consoles++
		if a.ReadyToActivate(now) {
			return false
		}
	}
	return consoles > 0
}

func removeStale(list []alerts.Alert, now time.Time) []alerts.Alert {
	out := list[:0]
	for _, a := range list {
		if a.Stale(now) {
			slog.Debug("Dropping stale alert",
				"event_id", a.EventID,
				"criterion", a.Criterion.Name,
				"deactivation_time", a.DeactivationTime,
			)
			continue
		}
		out = append(out, a)
	}
	return out
}

// removeSuperseded drops every ready alert for which a later ready alert of
// the same kind exists in the batch.
func removeSuperseded(list []alerts.Alert, now time.Time) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(list))
	for i, a := range list {
		superseded := false
		if a.ReadyToActivate(now) {
			for j, b := range list {
				if i != j && b.Kind == a.Kind && b.EventID == a.EventID &&
					b.ReadyToActivate(now) && a.ActivationTime.Before(b.ActivationTime) {
					superseded = true
					break
				}
			}
		}
		if !superseded {
			out = append(out, a)
		}
	}
	return out
}
