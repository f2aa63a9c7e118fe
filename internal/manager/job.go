package manager

import (
	"time"

	"github.com/google/uuid"

	"hazard-alerts/internal/alerts"
	"hazard-alerts/internal/scheduler"
)

// Job is one pending wakeup for one alert. Jobs are owned by the Manager.
type Job struct {
	id    string
	alert alerts.Alert
	entry *scheduler.Entry
}

func newJob(a alerts.Alert) *Job {
	return &Job{
		id:    uuid.New().String(),
		alert: a,
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Alert returns the alert this job activates.
func (j *Job) Alert() alerts.Alert { return j.alert }

// schedule arms a one-shot wakeup that calls fire(j) after delay.
func (j *Job) schedule(t *scheduler.Timer, delay time.Duration, fire func(*Job)) {
	j.entry = t.AfterFunc(delay, func() { fire(j) })
}

// cancel disarms the wakeup. Canceling an unarmed or fired job is a no-op.
func (j *Job) cancel() {
	if j.entry != nil {
		j.entry.Cancel()
	}
}
