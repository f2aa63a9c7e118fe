// Package manager schedules, activates and cancels hazard alerts.
//
// All state transitions of a Manager happen under one mutex owned by that
// Manager: timer wakeups, notification batches, explicit schedule/cancel calls
// and clock discontinuities. Strategies are invoked while the mutex is held and
// call back through a handle that does not lock again.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hazard-alerts/internal/alerts"
	"hazard-alerts/internal/bus"
	"hazard-alerts/internal/clock"
	"hazard-alerts/internal/events"
	"hazard-alerts/internal/scheduler"
	"hazard-alerts/internal/strategy"
)

const dispatchBuffer = 64

// Strategy is an alert generation policy bound to one notification kind.
type Strategy interface {
	InitializeAlerts(ctx context.Context, m strategy.Manager) error
	AddAlerts(ctx context.Context, m strategy.Manager, eventIDs []string) error
	UpdateAlerts(ctx context.Context, m strategy.Manager, n events.Notification) error
	SupersededAlerts(a alerts.Alert, active []alerts.Alert) []alerts.Alert
	// Reset forgets every event the strategy has generated alerts for.
	Reset()
}

// Bus is the notification source the manager listens to.
type Bus interface {
	Subscribe(o bus.Observer)
	Unsubscribe(o bus.Observer)
}

// Manager owns the scheduled jobs and the active alert set.
type Manager struct {
	mu sync.Mutex

	clock     clock.Clock
	bus       Bus
	publisher Publisher
	metrics   Metrics
	timer     *scheduler.Timer

	strategies map[events.Kind]Strategy
	kinds      []events.Kind
	scheduled  map[string]*Job
	active     []alerts.Alert

	listening        bool
	closed           bool
	unsubscribeClock func()

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	wg        sync.WaitGroup

	dispatch chan []events.Notification

	pubMu     sync.Mutex
	pubQueue  []*events.AlertsModified
	pubSignal chan struct{}
}

// NewManager creates a manager without metrics.
func NewManager(clk clock.Clock, b Bus, publisher Publisher) *Manager {
	return NewManagerWithMetrics(clk, b, publisher, nil)
}

// NewManagerWithMetrics creates a manager that records metrics.
// If metrics is nil, a no-op implementation is used.
func NewManagerWithMetrics(clk clock.Clock, b Bus, publisher Publisher, metrics Metrics) *Manager {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	if publisher == nil {
		publisher = NewMultiPublisher()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clock:      clk,
		bus:        b,
		publisher:  publisher,
		metrics:    metrics,
		timer:      scheduler.New(),
		strategies: make(map[events.Kind]Strategy),
		scheduled:  make(map[string]*Job),
		ctx:        ctx,
		cancel:     cancel,
		dispatch:   make(chan []events.Notification, dispatchBuffer),
		pubSignal:  make(chan struct{}, 1),
	}
}

// AddAlertGenerationStrategy routes notifications of kind to s.
// Registering a kind again replaces its strategy.
func (m *Manager) AddAlertGenerationStrategy(kind events.Kind, s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.strategies[kind]; !exists {
		m.kinds = append(m.kinds, kind)
	}
	m.strategies[kind] = s
	slog.Info("Registered alert generation strategy", "kind", kind)
}

// Start launches the dispatch and publish workers, subscribes to clock
// discontinuities and, unless the clock is frozen, resumes notification
// delivery and initializes alerts for every strategy.
func (m *Manager) Start(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.wg.Add(2)
		go m.dispatchLoop()
		go m.publishLoop()

		unsubscribe := m.clock.Subscribe(m.onClockChange)
		m.mu.Lock()
		m.unsubscribeClock = unsubscribe
		m.mu.Unlock()

		// Stop with the caller's context as well as on Shutdown.
		go func() {
			select {
			case <-ctx.Done():
				m.Shutdown()
			case <-m.ctx.Done():
			}
		}()
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("manager is shut down")
	}
	return m.startLocked()
}

func (m *Manager) startLocked() error {
	if m.clock.IsFrozen() {
		slog.Info("Clock is frozen, alert generation suspended")
		return nil
	}
	if !m.listening && m.bus != nil {
		m.bus.Subscribe(m)
		m.listening = true
	}

	sink := lockedManager{m}
	var errs []error
	for _, kind := range m.kinds {
		if err := m.strategies[kind].InitializeAlerts(m.ctx, sink); err != nil {
			errs = append(errs, fmt.Errorf("failed to initialize alerts for %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// ScheduleAlert arms a wakeup for a at its activation time.
func (m *Manager) ScheduleAlert(a alerts.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleLocked(a)
}

func (m *Manager) scheduleLocked(a alerts.Alert) {
	if m.closed {
		return
	}
	for id, job := range m.scheduled {
		if job.alert.Same(a) {
			job.cancel()
			delete(m.scheduled, id)
		}
	}

	a.State = alerts.StateScheduled
	job := newJob(a)
	m.scheduled[job.id] = job

	now := m.clock.Now()
	delay := a.ActivationTime.Sub(now)
	if delay < 0 {
		delay = 0
	}
	m.metrics.IncrementCustom(counterScheduled)

	// A frozen clock never reaches a future activation; the next
	// discontinuity rebuilds every alert anyway.
	if delay > 0 && m.clock.IsFrozen() {
		slog.Debug("Alert held while clock is frozen",
			"event_id", a.EventID,
			"criterion", a.Criterion.Name,
			"alert_kind", a.Kind,
		)
		return
	}

	job.schedule(m.timer, delay, m.activateAlert)
	slog.Debug("Scheduled alert",
		"job_id", job.id,
		"event_id", a.EventID,
		"criterion", a.Criterion.Name,
		"alert_kind", a.Kind,
		"activation_time", a.ActivationTime,
		"delay", delay,
	)
}

// activateAlert runs on the timer worker when job fires.
func (m *Manager) activateAlert(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scheduled[job.id]; !ok {
		// Canceled or cleared before the wakeup acquired the lock.
		return
	}
	delete(m.scheduled, job.id)

	a := job.alert
	a.State = alerts.StateActive

	for _, kind := range m.kinds {
		for _, old := range m.strategies[kind].SupersededAlerts(a, m.active) {
			if m.removeActiveLocked(old) {
				m.metrics.IncrementCustom(counterSuperseded)
				slog.Info("Alert superseded",
					"event_id", old.EventID,
					"criterion", old.Criterion.Name,
					"alert_kind", old.Kind,
					"superseded_by", a.Criterion.Name,
				)
			}
		}
	}

	m.active = append(m.active, a)
	m.metrics.IncrementCustom(counterActivated)
	slog.Info("Alert activated",
		"event_id", a.EventID,
		"criterion", a.Criterion.Name,
		"alert_kind", a.Kind,
		"deactivation_time", a.DeactivationTime,
	)
	m.publishLocked()
}

// CancelAlert removes a from the active set or cancels its pending job.
// A snapshot is published even when nothing matched.
func (m *Manager) CancelAlert(a alerts.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(a)
}

func (m *Manager) cancelLocked(a alerts.Alert) {
	if m.closed {
		return
	}
	matched := m.removeActiveLocked(a)
	if !matched {
		for id, job := range m.scheduled {
			if job.alert.Same(a) {
				job.cancel()
				delete(m.scheduled, id)
				matched = true
				break
			}
		}
	}
	if matched {
		m.metrics.IncrementCustom(counterCanceled)
		slog.Debug("Alert canceled",
			"event_id", a.EventID,
			"criterion", a.Criterion.Name,
			"alert_kind", a.Kind,
		)
	}
	m.publishLocked()
}

func (m *Manager) removeActiveLocked(a alerts.Alert) bool {
	for i, existing := range m.active {
		if existing.Same(a) {
			m.active = append(m.active[:i:i], m.active[i+1:]...)
			return true
		}
	}
	return false
}

// Alerts returns active alerts followed by every still-scheduled alert.
func (m *Manager) Alerts() []alerts.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alertsLocked()
}

func (m *Manager) alertsLocked() []alerts.Alert {
	out := make([]alerts.Alert, 0, len(m.active)+len(m.scheduled))
	out = append(out, m.active...)

	pending := make([]alerts.Alert, 0, len(m.scheduled))
	for _, job := range m.scheduled {
		pending = append(pending, job.alert)
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ActivationTime.Equal(pending[j].ActivationTime) {
			return pending[i].ActivationTime.Before(pending[j].ActivationTime)
		}
		return pending[i].Key() < pending[j].Key()
	})
	return append(out, pending...)
}

// ActiveAlerts returns a copy of the active alerts.
func (m *Manager) ActiveAlerts() []alerts.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]alerts.Alert, len(m.active))
	copy(out, m.active)
	return out
}

// AddAlerts asks every strategy to process eventIDs as if each had just been stored.
func (m *Manager) AddAlerts(ctx context.Context, eventIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("manager is shut down")
	}

	sink := lockedManager{m}
	var errs []error
	for _, kind := range m.kinds {
		if err := m.strategies[kind].AddAlerts(ctx, sink, eventIDs); err != nil {
			errs = append(errs, fmt.Errorf("failed to add alerts for %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// OnNotifications queues batch for the dispatch worker. It implements bus.Observer.
func (m *Manager) OnNotifications(batch []events.Notification) {
	for range batch {
		m.metrics.RecordReceived()
	}
	select {
	case m.dispatch <- batch:
	case <-m.ctx.Done():
	}
}

func (m *Manager) dispatchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case batch := <-m.dispatch:
			m.processBatch(batch)
		}
	}
}

// processBatch applies one batch under the mutex so a batch is never
// interleaved with a timer wakeup or another batch.
func (m *Manager) processBatch(batch []events.Notification) {
	startTime := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	sink := lockedManager{m}
	for _, n := range batch {
		s, ok := m.strategies[n.Kind]
		if !ok {
			m.metrics.IncrementCustom(counterIgnored)
			continue
		}
		if err := s.UpdateAlerts(m.ctx, sink, n); err != nil {
			m.metrics.RecordError()
			var statusErr *strategy.UnexpectedStatusError
			if errors.As(err, &statusErr) {
				m.metrics.IncrementCustom(counterUnexpectedStatuses)
				slog.Error("Unexpected hazard event status",
					"notification_id", n.NotificationID,
					"event_id", statusErr.EventID,
					"status", statusErr.Status,
					"error", err,
				)
				continue
			}
			slog.Error("Failed to update alerts",
				"notification_id", n.NotificationID,
				"kind", n.Kind,
				"event_id", n.Event.EventID,
				"error", err,
			)
		}
	}
	m.metrics.RecordProcessed(time.Since(startTime))
}

// onClockChange clears every alert and rebuilds against the new time base.
func (m *Manager) onClockChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.metrics.IncrementCustom(counterDiscontinuities)
	frozen := m.clock.IsFrozen()
	slog.Info("Clock discontinuity, clearing alerts",
		"now", m.clock.Now(),
		"frozen", frozen,
		"scheduled", len(m.scheduled),
		"active", len(m.active),
	)

	m.resetLocked()
	m.publishLocked()

	if frozen {
		if m.listening && m.bus != nil {
			m.bus.Unsubscribe(m)
			m.listening = false
		}
		return
	}

	if err := m.startLocked(); err != nil {
		m.metrics.RecordError()
		m.metrics.IncrementCustom(counterRebuildFailures)
		slog.Error("Failed to rebuild alerts after clock change", "error", err)
		m.resetLocked()
		m.publishLocked()
	}
}

// resetLocked drops every job and active alert. Strategies forget their
// alerted events too, so a later STORE regenerates alerts.
func (m *Manager) resetLocked() {
	for _, job := range m.scheduled {
		job.cancel()
	}
	m.scheduled = make(map[string]*Job)
	m.active = nil
	for _, kind := range m.kinds {
		m.strategies[kind].Reset()
	}
}

// Shutdown unsubscribes from the clock and the bus, cancels every job and
// stops the workers. It is safe to call more than once.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.unsubscribeClock != nil {
		m.unsubscribeClock()
	}
	if m.listening && m.bus != nil {
		m.bus.Unsubscribe(m)
		m.listening = false
	}
	m.resetLocked()
	m.mu.Unlock()

	// Stop the timer outside the mutex: a firing callback may be waiting on it.
	m.timer.Stop()
	m.cancel()
	m.wg.Wait()
	slog.Info("Alerts manager shut down")
}

// publishLocked queues a snapshot of the active set for the publish worker.
func (m *Manager) publishLocked() {
	msg := &events.AlertsModified{
		NotificationID: uuid.New().String(),
		SchemaVersion:  events.SchemaVersion,
		PublishedAt:    m.clock.Now().UTC(),
		Alerts:         alerts.Views(m.active),
	}

	m.pubMu.Lock()
	m.pubQueue = append(m.pubQueue, msg)
	m.pubMu.Unlock()

	select {
	case m.pubSignal <- struct{}{}:
	default:
	}
}

func (m *Manager) publishLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.pubSignal:
			m.flush()
		}
	}
}

func (m *Manager) flush() {
	m.pubMu.Lock()
	queue := m.pubQueue
	m.pubQueue = nil
	m.pubMu.Unlock()

	for _, msg := range queue {
		if err := m.publisher.Publish(m.ctx, msg); err != nil {
			m.metrics.RecordError()
			slog.Error("Failed to publish alerts snapshot",
				"notification_id", msg.NotificationID,
				"alerts", len(msg.Alerts),
				"error", err,
			)
			continue
		}
		m.metrics.RecordPublished()
	}
}

// lockedManager is handed to strategies while m.mu is held.
type lockedManager struct {
	m *Manager
}

func (l lockedManager) ScheduleAlert(a alerts.Alert) { l.m.scheduleLocked(a) }
func (l lockedManager) CancelAlert(a alerts.Alert)   { l.m.cancelLocked(a) }
func (l lockedManager) Alerts() []alerts.Alert       { return l.m.alertsLocked() }
