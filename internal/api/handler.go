// Package api serves the HTTP read API for alert snapshots and the control
// endpoint for the simulated clock.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hazard-alerts/internal/alerts"
	"hazard-alerts/internal/clock"
)

// AlertSource exposes the manager's current alert sets.
type AlertSource interface {
	Alerts() []alerts.Alert
	ActiveAlerts() []alerts.Alert
}

// ClockControl is implemented by clocks that can be driven at runtime.
type ClockControl interface {
	clock.Clock
	Freeze()
	Unfreeze()
	Step(d time.Duration)
	Jump(t time.Time)
}

// CriteriaCounter reports how many alert criteria are loaded.
type CriteriaCounter interface {
	CriteriaCount() int
}

// Options configures the optional parts of the handler.
type Options struct {
	// Gatherer is served at /metrics when non-nil.
	Gatherer prometheus.Gatherer
	// WebSocket is served at /ws/alerts when non-nil.
	WebSocket http.Handler
	// Criteria is reported by /health when non-nil.
	Criteria CriteriaCounter
}

// Handler is the HTTP handler for all service endpoints.
type Handler struct {
	alerts   AlertSource
	clock    clock.Clock
	control  ClockControl
	criteria CriteriaCounter
	mux      *http.ServeMux
}

// New creates a Handler for src and clk and registers all routes. The clock
// endpoints accept POST only when clk implements ClockControl.
func New(src AlertSource, clk clock.Clock, opts Options) http.Handler {
	h := &Handler{
		alerts:   src,
		clock:    clk,
		criteria: opts.Criteria,
		mux:      http.NewServeMux(),
	}
	if c, ok := clk.(ClockControl); ok {
		h.control = c
	}

	h.mux.HandleFunc("/health", h.health)
	h.mux.HandleFunc("/api/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/alerts/active", h.listActive)
	h.mux.HandleFunc("/api/clock", h.clockState)
	if opts.Gatherer != nil {
		h.mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.WebSocket != nil {
		h.mux.Handle("/ws/alerts", opts.WebSocket)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /health: alert counts and clock state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	all := h.alerts.Alerts()
	active := 0
	for _, a := range all {
		if a.State == alerts.StateActive {
			active++
		}
	}
	resp := HealthResponse{
		Status:          "ok",
		ActiveAlerts:    active,
		ScheduledAlerts: len(all) - active,
		ClockFrozen:     h.clock.IsFrozen(),
	}
	if h.criteria != nil {
		resp.CriteriaCount = h.criteria.CriteriaCount()
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/alerts: active then scheduled alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, AlertsResponse{
		Now:    h.clock.Now().UTC(),
		Alerts: alerts.Views(h.alerts.Alerts()),
	})
}

// listActive returns GET /api/alerts/active.
func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, AlertsResponse{
		Now:    h.clock.Now().UTC(),
		Alerts: alerts.Views(h.alerts.ActiveAlerts()),
	})
}

// clockState handles GET and POST /api/clock.
func (h *Handler) clockState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, h.clockResponse())
	case http.MethodPost:
		h.changeClock(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) changeClock(w http.ResponseWriter, r *http.Request) {
	if h.control == nil {
		jsonErr(w, http.StatusConflict, "clock is not simulated")
		return
	}

	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.apply(req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, h.clockResponse())
}

func (h *Handler) apply(req ClockRequest) error {
	switch req.Action {
	case "freeze":
		h.control.Freeze()
	case "unfreeze":
		h.control.Unfreeze()
	case "step":
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration %q", req.Duration)
		}
		h.control.Step(d)
	case "jump":
		t, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			return fmt.Errorf("invalid time %q: want RFC3339", req.Time)
		}
		h.control.Jump(t)
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
	return nil
}

func (h *Handler) clockResponse() ClockResponse {
	return ClockResponse{
		Now:       h.clock.Now().UTC(),
		Frozen:    h.clock.IsFrozen(),
		Simulated: h.control != nil,
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
