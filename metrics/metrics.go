package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	lifecycleOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectibles",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by name and outcome.",
		},
		[]string{"op", "result"},
	)

	activeSeries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collectibles",
			Subsystem: "lifecycle",
			Name:      "active_series",
			Help:      "Number of the active series (0 when none).",
		},
	)

	activePhase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collectibles",
			Subsystem: "lifecycle",
			Name:      "active_phase",
			Help:      "Number of the active phase within its series (0 when none).",
		},
	)

	phasePaused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collectibles",
			Subsystem: "lifecycle",
			Name:      "phase_paused",
			Help:      "1 while the active phase is paused.",
		},
	)

	telemetryDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectibles",
			Subsystem: "telemetry",
			Name:      "dropped_total",
			Help:      "Telemetry events a sink failed to deliver.",
		},
		[]string{"sink"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectibles",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collectibles",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	inventorySynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "collectibles",
			Subsystem: "inventory",
			Name:      "items_synced_total",
			Help:      "Inventory items upserted by the sync worker.",
		},
	)
)

func init() {
	Registry.MustRegister(
		lifecycleOps,
		activeSeries,
		activePhase,
		phasePaused,
		telemetryDropped,
		httpRequests,
		httpDuration,
		inventorySynced,
	)
}

// LifecycleOp counts one lifecycle operation outcome ("ok" or an error code).
func LifecycleOp(op, result string) {
	lifecycleOps.WithLabelValues(op, result).Inc()
}

// SetPosition publishes the active series/phase pair.
func SetPosition(series, phase int, paused bool) {
	activeSeries.Set(float64(series))
	activePhase.Set(float64(phase))
	if paused {
		phasePaused.Set(1)
	} else {
		phasePaused.Set(0)
	}
}

func TelemetryDropped(sink string) {
	telemetryDropped.WithLabelValues(sink).Inc()
}

func InventorySynced(n int) {
	inventorySynced.Add(float64(n))
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
