// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	EngineRunning      prometheus.Gauge
	TicksStarted       prometheus.Counter
	TicksCompleted     prometheus.Counter
	TickDuration       prometheus.Histogram
	BatchSize          prometheus.Gauge
	CycleIntervalSecs  prometheus.Gauge
	SimulationsTotal   *prometheus.CounterVec
	SimulationFailures prometheus.Counter

	// Signal metrics
	SignalRequests *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "candle_learning_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Engine metrics
		EngineRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "running",
			Help:      "1 while the learning engine is ticking, 0 otherwise",
		}),
		TicksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_started_total",
			Help:      "Total number of learning cycles started",
		}),
		TicksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_completed_total",
			Help:      "Total number of learning cycles whose batch settled",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Time from batch dispatch until every simulation settled",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}),
		BatchSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "batch_size",
			Help:      "Configured number of symbols sampled per cycle",
		}),
		CycleIntervalSecs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_interval_seconds",
			Help:      "Configured interval between cycles",
		}),
		SimulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "simulations_total",
			Help:      "Total number of recorded simulations by result",
		}, []string{"result"}),
		SimulationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "simulation_failures_total",
			Help:      "Total number of simulations dropped because of a persistence error",
		}),

		// Signal metrics
		SignalRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "requests_total",
			Help:      "Total number of signal requests by outcome",
		}, []string{"outcome"}),

		// Cache metrics
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by outcome",
		}, []string{"outcome"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// SetEngineRunning updates the engine running gauge.
func SetEngineRunning(running bool) {
	if running {
		DefaultMetrics.EngineRunning.Set(1)
		return
	}
	DefaultMetrics.EngineRunning.Set(0)
}

// SetEngineConfig updates the configured batch size and interval gauges.
func SetEngineConfig(batchSize int, intervalSeconds float64) {
	DefaultMetrics.BatchSize.Set(float64(batchSize))
	DefaultMetrics.CycleIntervalSecs.Set(intervalSeconds)
}

// RecordTickStarted increments the started cycles counter.
func RecordTickStarted() {
	DefaultMetrics.TicksStarted.Inc()
}

// RecordTickCompleted records a settled cycle and its duration.
func RecordTickCompleted(durationSeconds float64) {
	DefaultMetrics.TicksCompleted.Inc()
	DefaultMetrics.TickDuration.Observe(durationSeconds)
}

// RecordSimulation records a successfully persisted simulation.
func RecordSimulation(result string) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(result).Inc()
}

// RecordSimulationFailure records a dropped simulation.
func RecordSimulationFailure() {
	DefaultMetrics.SimulationFailures.Inc()
}

// RecordSignalRequest records a signal request outcome ("issued", "no_strategy", "error").
func RecordSignalRequest(outcome string) {
	DefaultMetrics.SignalRequests.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		DefaultMetrics.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
