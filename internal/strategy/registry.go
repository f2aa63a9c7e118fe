package strategy

import (
	"sync"

	"hazard-alerts/internal/events"
)

// registry remembers, per event, the snapshot alerts were last generated for.
type registry struct {
	mu     sync.Mutex
	events map[string]events.HazardEvent
}

func newRegistry() *registry {
	return &registry{events: make(map[string]events.HazardEvent)}
}

func (r *registry) get(eventID string) (events.HazardEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	return e, ok
}

func (r *registry) put(e events.HazardEvent) {
	r.mu.Lock()
	r.events[e.EventID] = e
	r.mu.Unlock()
}

func (r *registry) remove(eventID string) {
	r.mu.Lock()
	delete(r.events, eventID)
	r.mu.Unlock()
}

func (r *registry) reset() {
	r.mu.Lock()
	r.events = make(map[string]events.HazardEvent)
	r.mu.Unlock()
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
