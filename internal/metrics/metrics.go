// Package metrics collects service counters, reports them to Redis and
// exports them to Prometheus.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// TTL is how long metrics stay in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second

	namespace = "hazard_alerts"
)

// ServiceMetrics is the JSON document written to Redis.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	NotificationsReceived uint64 `json:"notifications_received"`
	BatchesProcessed      uint64 `json:"batches_processed"`
	SnapshotsPublished    uint64 `json:"snapshots_published"`
	ProcessingErrors      uint64 `json:"processing_errors"`

	BatchesPerSecond  float64           `json:"batches_per_second"`
	AvgBatchLatencyNs float64           `json:"avg_batch_latency_ns"`
	CustomCounters    map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects and reports metrics for the service. It satisfies
// manager.Metrics.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	received  atomic.Uint64
	processed atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64

	// Rate calculation state, touched only by the reporting goroutine.
	lastReportTime     time.Time
	lastProcessedCount uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	promReceived  prometheus.Counter
	promProcessed prometheus.Histogram
	promPublished prometheus.Counter
	promErrors    prometheus.Counter
	promCustom    *prometheus.CounterVec

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector for serviceName. redisClient may be nil,
// in which case nothing is written to Redis. Prometheus collectors are
// registered with reg when it is non-nil.
func NewCollector(serviceName string, redisClient *redis.Client, reg prometheus.Registerer) *Collector {
	now := time.Now().UTC()
	c := &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),

		promReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "Notifications received from the notification bus.",
		}),
		promProcessed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_seconds",
			Help:      "Time spent applying one notification batch.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		promPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Alerts-modified snapshots published.",
		}),
		promErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_errors_total",
			Help:      "Errors raised while processing notifications or publishing.",
		}),
		promCustom: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Alert lifecycle and clock events by name.",
		}, []string{"name"}),
	}
	if reg != nil {
		reg.MustRegister(c.promReceived, c.promProcessed, c.promPublished, c.promErrors, c.promCustom)
	}
	return c
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		c.reportInterval = interval
	}
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived increments the notifications received counter.
func (c *Collector) RecordReceived() {
	c.received.Add(1)
	c.promReceived.Inc()
}

// RecordProcessed records one processed batch and its latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.processed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
	c.promProcessed.Observe(latency.Seconds())
}

// RecordPublished increments the snapshots published counter.
func (c *Collector) RecordPublished() {
	c.published.Add(1)
	c.promPublished.Inc()
}

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() {
	c.errors.Add(1)
	c.promErrors.Inc()
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
	c.promCustom.WithLabelValues(name).Add(float64(value))
}

// Custom returns the current value of a custom counter.
func (c *Collector) Custom(name string) uint64 {
	c.customMu.RLock()
	defer c.customMu.RUnlock()
	if counter, ok := c.customCounters[name]; ok {
		return counter.Load()
	}
	return 0
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	processed := c.processed.Load()

	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(processed-c.lastProcessedCount) / elapsed
	}

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:           c.serviceName,
		StartedAt:             c.startedAt,
		LastUpdated:           now,
		Status:                "healthy",
		NotificationsReceived: c.received.Load(),
		BatchesProcessed:      processed,
		SnapshotsPublished:    c.published.Load(),
		ProcessingErrors:      c.errors.Load(),
		BatchesPerSecond:      rate,
		AvgBatchLatencyNs:     avgLatencyNs,
		CustomCounters:        custom,
	}
}

func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()
	c.lastReportTime = snapshot.LastUpdated
	c.lastProcessedCount = snapshot.BatchesProcessed

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

// Read retrieves the metrics document for serviceName from Redis. Documents
// older than TTL are reported as unhealthy.
func Read(ctx context.Context, client *redis.Client, serviceName string) (*ServiceMetrics, error) {
	data, err := client.Get(ctx, KeyPrefix+serviceName).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no metrics found for service: %s", serviceName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	var m ServiceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if time.Since(m.LastUpdated) > TTL {
		m.Status = "unhealthy"
	}
	return &m, nil
}

// ConnectRedis creates and validates a Redis connection.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// MaskDSN masks sensitive information in a DSN for logging.
func MaskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	return "***"
}
