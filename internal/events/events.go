// Package events defines the hazard-event notifications consumed by the alert
// scheduler and the "alerts modified" snapshot it publishes.
package events

import (
	"strings"
	"time"
)

// SchemaVersion is the current wire schema version of both envelopes.
const SchemaVersion = 1

// Kind tags a notification so the manager can route it to a strategy.
type Kind string

const (
	// KindHazardEvent is a hazard-event lifecycle notification.
	KindHazardEvent Kind = "HAZARD_EVENT"
	// KindProductGenerated is emitted when product text is generated; no strategy consumes it.
	KindProductGenerated Kind = "PRODUCT_GENERATED"
)

// Change is the kind of change a hazard notification carries.
type Change string

const (
	ChangeStore  Change = "STORE"
	ChangeDelete Change = "DELETE"
	// ChangeUpdate marks interoperability-only updates.
	ChangeUpdate Change = "UPDATE"
)

// Status is a hazard event lifecycle status.
type Status string

const (
	StatusPending Status = "PENDING"
	// StatusPendingGridSave marks a pending event saved by an external grid tool.
	StatusPendingGridSave Status = "PENDING_GRID_SAVE"
	// StatusPendingUserSave marks a pending event saved by the forecaster.
	StatusPendingUserSave Status = "PENDING_USER_SAVE"
	StatusProposed        Status = "PROPOSED"
	StatusIssued          Status = "ISSUED"
	StatusEnding          Status = "ENDING"
	StatusElapsing        Status = "ELAPSING"
	StatusEnded           Status = "ENDED"
	StatusElapsed         Status = "ELAPSED"
)

// IssuedButNotEndedOrElapsed reports whether s is live issued state.
func (s Status) IssuedButNotEndedOrElapsed() bool {
	switch s {
	case StatusIssued, StatusEnding, StatusElapsing:
		return true
	}
	return false
}

// EndedOrElapsed reports whether s is terminal.
func (s Status) EndedOrElapsed() bool {
	return s == StatusEnded || s == StatusElapsed
}

// Pending reports whether s is any of the pending variants.
func (s Status) Pending() bool {
	switch s {
	case StatusPending, StatusPendingGridSave, StatusPendingUserSave:
		return true
	}
	return false
}

// HazardEvent is a read-only view of a tracked hazard event.
// A zero ExpirationTime means the event has no expiration.
type HazardEvent struct {
	EventID        string            `json:"event_id"`
	Status         Status            `json:"status"`
	Phenomenon     string            `json:"phenomenon"`
	Significance   string            `json:"significance"`
	Subtype        string            `json:"subtype,omitempty"`
	ExpirationTime time.Time         `json:"expiration_time"`
	EndTime        time.Time         `json:"end_time"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// HasExpiration reports whether the event carries an expiration timestamp.
func (e *HazardEvent) HasExpiration() bool {
	return !e.ExpirationTime.IsZero()
}

// HazardType returns the PHEN.SIG[.SUBTYPE] key of the event.
func (e *HazardEvent) HazardType() string {
	return HazardType(e.Phenomenon, e.Significance, e.Subtype)
}

// HazardType joins phenomenon, significance and optional subtype with dots.
func HazardType(phenomenon, significance, subtype string) string {
	parts := []string{phenomenon, significance}
	if subtype != "" {
		parts = append(parts, subtype)
	}
	return strings.Join(parts, ".")
}

// Notification is one domain notification delivered by the bus.
type Notification struct {
	NotificationID string      `json:"notification_id"`
	Kind           Kind        `json:"kind"`
	Change         Change      `json:"change,omitempty"`
	Event          HazardEvent `json:"event"`
}

// NotificationBatch is the payload of one message on the notifications topic.
type NotificationBatch struct {
	SchemaVersion int            `json:"schema_version"`
	Notifications []Notification `json:"notifications"`
}

// AlertView is the wire representation of one alert in an outbound snapshot.
type AlertView struct {
	EventID          string    `json:"event_id"`
	Criterion        string    `json:"criterion"`
	Kind             string    `json:"kind"`
	State            string    `json:"state"`
	Color            string    `json:"color,omitempty"`
	Bold             bool      `json:"bold,omitempty"`
	Italic           bool      `json:"italic,omitempty"`
	Blinking         bool      `json:"blinking,omitempty"`
	HazardExpiration time.Time `json:"hazard_expiration"`
	HazardEnd        time.Time `json:"hazard_end"`
	ActivationTime   time.Time `json:"activation_time"`
	DeactivationTime time.Time `json:"deactivation_time"`
}

// AlertsModified carries the full active-alert set after every change.
// It is a snapshot, not a delta.
type AlertsModified struct {
	NotificationID string      `json:"notification_id"`
	SchemaVersion  int         `json:"schema_version"`
	PublishedAt    time.Time   `json:"published_at"`
	Alerts         []AlertView `json:"alerts"`
}
