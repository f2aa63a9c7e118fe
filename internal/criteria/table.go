// Package criteria provides the alert criteria table keyed by hazard type,
// loaded from a YAML file or a Redis snapshot and swapped atomically on reload.
package criteria

import (
	"sort"
	"strings"
	"sync"

	"hazard-alerts/internal/alerts"
)

// Entries maps a hazard type (PHEN.SIG or PHEN.SIG.SUBTYPE) to its criteria.
type Entries map[string][]alerts.Criterion

// Table provides thread-safe access to the current criteria.
// It supports atomic swapping of entries when criteria are reloaded.
type Table struct {
	mu      sync.RWMutex
	entries Entries
}

// NewTable creates a table holding entries.
func NewTable(entries Entries) *Table {
	if entries == nil {
		entries = Entries{}
	}
	return &Table{entries: entries}
}

// CriteriaFor returns the criteria for hazardType. A PHEN.SIG.SUBTYPE type
// with no entry of its own falls back to PHEN.SIG.
// The returned slice must not be modified.
func (t *Table) CriteriaFor(hazardType string) []alerts.Criterion {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if list, ok := t.entries[hazardType]; ok {
		return list
	}
	if parts := strings.Split(hazardType, "."); len(parts) > 2 {
		return t.entries[parts[0]+"."+parts[1]]
	}
	return nil
}

// Update atomically swaps the entries with new ones.
func (t *Table) Update(entries Entries) {
	if entries == nil {
		entries = Entries{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = entries
}

// HazardTypes returns the configured hazard types in sorted order.
func (t *Table) HazardTypes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CriteriaCount returns the total number of criteria across all hazard types.
func (t *Table) CriteriaCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries.count()
}

func (e Entries) count() int {
	n := 0
	for _, list := range e {
		n += len(list)
	}
	return n
}
