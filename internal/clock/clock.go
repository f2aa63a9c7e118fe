// Package clock provides the time source used for alert scheduling.
// The simulated clock can be frozen, stepped, or jumped; every such change is
// reported to subscribers as a discontinuity.
package clock

import (
	"log/slog"
	"sync"
	"time"
)

// Clock supplies the current time, a frozen flag, and discontinuity notifications.
type Clock interface {
	// Now returns the current time of this clock.
	Now() time.Time
	// IsFrozen reports whether the clock is currently stopped.
	IsFrozen() bool
	// Subscribe registers fn to be called after every discontinuity.
	// The returned function removes the subscription.
	Subscribe(fn func()) (unsubscribe func())
}

// System is a Clock backed by wall time. It never freezes and never jumps.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// IsFrozen always returns false.
func (System) IsFrozen() bool { return false }

// Subscribe is a no-op since wall time has no discontinuities.
func (System) Subscribe(func()) func() { return func() {} }

// Simulated is a Clock whose time base can be changed at runtime.
// While running it advances at wall-clock rate from the last anchor.
//
// Simulated is safe for concurrent use.
type Simulated struct {
	mu       sync.Mutex
	base     time.Time // simulated time at anchor
	anchor   time.Time // wall time when base was set
	frozen   bool
	wall     func() time.Time // injectable for deterministic tests
	nextID   int
	handlers map[int]func()
}

// NewSimulated creates a running simulated clock starting at start.
func NewSimulated(start time.Time) *Simulated {
	return newSimulated(start, time.Now)
}

func newSimulated(start time.Time, wall func() time.Time) *Simulated {
	return &Simulated{
		base:     start,
		anchor:   wall(),
		wall:     wall,
		handlers: make(map[int]func()),
	}
}

// Now returns the current simulated time.
func (s *Simulated) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *Simulated) nowLocked() time.Time {
	if s.frozen {
		return s.base
	}
	return s.base.Add(s.wall().Sub(s.anchor))
}

// IsFrozen reports whether the clock is frozen.
func (s *Simulated) IsFrozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// Subscribe registers fn to be called after every discontinuity.
// Handlers run synchronously on the goroutine that changed the clock,
// after the clock's own lock has been released.
func (s *Simulated) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// Freeze stops the clock at its current time.
func (s *Simulated) Freeze() {
	s.change("freeze", func() {
		if s.frozen {
			return
		}
		s.base = s.nowLocked()
		s.frozen = true
	})
}

// Unfreeze resumes the clock from the time it was frozen at.
func (s *Simulated) Unfreeze() {
	s.change("unfreeze", func() {
		if !s.frozen {
			return
		}
		s.anchor = s.wall()
		s.frozen = false
	})
}

// Step moves the clock forward (or backward, for negative d) by d.
func (s *Simulated) Step(d time.Duration) {
	s.change("step", func() {
		s.base = s.nowLocked().Add(d)
		s.anchor = s.wall()
	})
}

// Jump sets the clock to t, keeping the frozen state unchanged.
func (s *Simulated) Jump(t time.Time) {
	s.change("jump", func() {
		s.base = t
		s.anchor = s.wall()
	})
}

// change applies mutate under the lock, then notifies subscribers.
func (s *Simulated) change(action string, mutate func()) {
	s.mu.Lock()
	mutate()
	now := s.nowLocked()
	frozen := s.frozen
	handlers := make([]func(), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	slog.Info("Simulated clock changed",
		"action", action,
		"now", now,
		"frozen", frozen,
		"subscribers", len(handlers),
	)

	for _, h := range handlers {
		h()
	}
}
