package manager

import "time"

// Metrics defines the interface for recording manager metrics.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// RecordReceived increments the count of notifications received from the bus.
	RecordReceived()
	// RecordPublished increments the count of alert snapshots published.
	RecordPublished()
	// RecordError increments the count of processing errors.
	RecordError()
	// RecordProcessed records the processing duration for a single batch.
	RecordProcessed(duration time.Duration)
	// IncrementCustom increments a custom counter by name.
	IncrementCustom(name string)
	// AddCustom adds a value to a custom counter by name.
	AddCustom(name string, value uint64)
}

// NoOpMetrics is a no-op implementation of Metrics.
// Use this when metrics collection is disabled.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordReceived()               {}
func (NoOpMetrics) RecordPublished()              {}
func (NoOpMetrics) RecordError()                  {}
func (NoOpMetrics) RecordProcessed(time.Duration) {}
func (NoOpMetrics) IncrementCustom(string)        {}
func (NoOpMetrics) AddCustom(string, uint64)      {}

// Custom counter names.
const (
	counterScheduled          = "alerts_scheduled"
	counterActivated          = "alerts_activated"
	counterCanceled           = "alerts_canceled"
	counterSuperseded         = "alerts_superseded"
	counterIgnored            = "notifications_ignored"
	counterDiscontinuities    = "clock_discontinuities"
	counterRebuildFailures    = "rebuild_failures"
	counterUnexpectedStatuses = "unexpected_statuses"
)
