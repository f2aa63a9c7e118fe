package api

import (
	"time"

	"hazard-alerts/internal/events"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	ActiveAlerts    int    `json:"active_alerts"`
	ScheduledAlerts int    `json:"scheduled_alerts"`
	CriteriaCount   int    `json:"criteria_count"`
	ClockFrozen     bool   `json:"clock_frozen"`
}

// AlertsResponse is the body of the alert listing endpoints.
type AlertsResponse struct {
	Now    time.Time          `json:"now"`
	Alerts []events.AlertView `json:"alerts"`
}

// ClockRequest is the body of POST /api/clock.
type ClockRequest struct {
	Action   string `json:"action"`             // freeze, unfreeze, step, jump
	Duration string `json:"duration,omitempty"` // step only, e.g. "10m"
	Time     string `json:"time,omitempty"`     // jump only, RFC3339
}

// ClockResponse describes the current clock.
type ClockResponse struct {
	Now       time.Time `json:"now"`
	Frozen    bool      `json:"frozen"`
	Simulated bool      `json:"simulated"`
}

type errorResponse struct {
	Error string `json:"error"`
}
