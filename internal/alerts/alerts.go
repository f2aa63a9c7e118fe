// Package alerts defines alert criteria, the Alert value, and the pure
// factory that builds alerts for a hazard event.
package alerts

import (
	"fmt"
	"time"

	"hazard-alerts/internal/events"
)

// Units selects how a criterion threshold is interpreted.
type Units string

const (
	// UnitsPercent fires once the threshold percent of the remaining duration has elapsed.
	UnitsPercent Units = "PERCENT"
	// UnitsFixedOffset fires threshold milliseconds before expiration.
	UnitsFixedOffset Units = "FIXED_OFFSET"
)

// Manifestation is the presentation channel of an alert.
type Manifestation string

const (
	ManifestationConsole Manifestation = "CONSOLE"
	ManifestationSpatial Manifestation = "SPATIAL"
	ManifestationPopup   Manifestation = "POPUP"
)

// Kind is the concrete alert kind. Supersession compares kinds, not criteria.
type Kind string

const (
	KindConsoleTimer Kind = "CONSOLE_TIMER"
	KindSpatialTimer Kind = "SPATIAL_TIMER"
	KindPopup        Kind = "POPUP"
)

// KindFor maps a manifestation to the alert kind that renders it.
func KindFor(m Manifestation) (Kind, bool) {
	switch m {
	case ManifestationConsole:
		return KindConsoleTimer, true
	case ManifestationSpatial:
		return KindSpatialTimer, true
	case ManifestationPopup:
		return KindPopup, true
	default:
		return "", false
	}
}

// State is the lifecycle state of an alert.
type State string

const (
	StateScheduled State = "SCHEDULED"
	StateActive    State = "ACTIVE"
	StateCanceled  State = "CANCELED"
)

// Criterion is one configured alert rule. Criteria are read-only once loaded.
type Criterion struct {
	Name           string          `yaml:"name" json:"name"`
	Units          Units           `yaml:"units" json:"units"`
	Threshold      float64         `yaml:"threshold" json:"threshold"`
	Manifestations []Manifestation `yaml:"manifestations" json:"manifestations"`
	Color          string          `yaml:"color" json:"color,omitempty"`
	Bold           bool            `yaml:"bold" json:"bold,omitempty"`
	Italic         bool            `yaml:"italic" json:"italic,omitempty"`
	Blinking       bool            `yaml:"blinking" json:"blinking,omitempty"`
}

// Immediate is the zero-delay console criterion used to flag an event the
// moment it is issued.
var Immediate = Criterion{
	Name:           "immediate",
	Units:          UnitsPercent,
	Threshold:      0,
	Manifestations: []Manifestation{ManifestationConsole},
}

// Validate checks the criterion for structural errors.
func (c Criterion) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("criterion name cannot be empty")
	}
	switch c.Units {
	case UnitsPercent:
		if c.Threshold < 0 || c.Threshold > 100 {
			return fmt.Errorf("criterion %q: percent threshold %v out of range [0, 100]", c.Name, c.Threshold)
		}
	case UnitsFixedOffset:
		if c.Threshold < 0 {
			return fmt.Errorf("criterion %q: offset threshold must be >= 0", c.Name)
		}
	default:
		return fmt.Errorf("criterion %q: unknown units %q", c.Name, c.Units)
	}
	if len(c.Manifestations) == 0 {
		return fmt.Errorf("criterion %q: manifestations cannot be empty", c.Name)
	}
	for _, m := range c.Manifestations {
		if _, ok := KindFor(m); !ok {
			return fmt.Errorf("criterion %q: unknown manifestation %q", c.Name, m)
		}
	}
	return nil
}

// Offset returns the fixed offset of a FIXED_OFFSET criterion.
func (c Criterion) Offset() time.Duration {
	return time.Duration(c.Threshold * float64(time.Millisecond))
}

// Alert is a time-triggered reminder for one hazard event.
// Identity is (EventID, Criterion.Name, Kind); only the manager changes State.
type Alert struct {
	EventID          string
	Criterion        Criterion
	Kind             Kind
	HazardExpiration time.Time
	HazardEnd        time.Time
	ActivationTime   time.Time
	DeactivationTime time.Time
	State            State
}

// Key returns the identity key of the alert.
func (a Alert) Key() string {
	return a.EventID + "|" + a.Criterion.Name + "|" + string(a.Kind)
}

// Same reports whether a and b denote the same alert.
func (a Alert) Same(b Alert) bool {
	return a.EventID == b.EventID && a.Criterion.Name == b.Criterion.Name && a.Kind == b.Kind
}

// ReadyToActivate reports whether the activation time has been reached at now.
func (a Alert) ReadyToActivate(now time.Time) bool {
	return !a.ActivationTime.After(now)
}

// Stale reports whether the deactivation time has already passed at now.
func (a Alert) Stale(now time.Time) bool {
	return a.DeactivationTime.Before(now)
}

// View converts the alert to its wire representation.
func (a Alert) View() events.AlertView {
	return events.AlertView{
		EventID:          a.EventID,
		Criterion:        a.Criterion.Name,
		Kind:             string(a.Kind),
		State:            string(a.State),
		Color:            a.Criterion.Color,
		Bold:             a.Criterion.Bold,
		Italic:           a.Criterion.Italic,
		Blinking:         a.Criterion.Blinking,
		HazardExpiration: a.HazardExpiration,
		HazardEnd:        a.HazardEnd,
		ActivationTime:   a.ActivationTime,
		DeactivationTime: a.DeactivationTime,
	}
}

// Views converts a list of alerts to wire form.
func Views(list []Alert) []events.AlertView {
	out := make([]events.AlertView, 0, len(list))
	for _, a := range list {
		out = append(out, a.View())
	}
	return out
}
