package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Command metrics
	CommandsTotal        *prometheus.CounterVec
	CommandDuration      *prometheus.HistogramVec
	ConcurrencyRetries   *prometheus.CounterVec
	EventsAppendedTotal  *prometheus.CounterVec
	PublishFailuresTotal prometheus.Counter

	// Ingestion metrics
	IngestedTotal *prometheus.CounterVec

	// Projection metrics
	ProjectedEventsTotal *prometheus.CounterVec
	ProjectionFlushes    *prometheus.CounterVec
	ProjectionBatchSize  prometheus.Histogram
	ProjectionPending    prometheus.Gauge
	ProjectionDropped    prometheus.Counter
	ProjectionRebuilds   *prometheus.CounterVec

	// Event bus metrics
	DeliveryFailuresTotal *prometheus.CounterVec

	// Database metrics
	DBQueriesTotal  *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// InitMetrics initializes the global metrics on the default registry.
// Only the first call registers collectors.
func InitMetrics(namespace string) *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(prometheus.DefaultRegisterer, namespace)
	})
	return metrics
}

// NewMetrics creates a metrics set registered on reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "orchestrix"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Command metrics
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alert",
				Name:      "commands_total",
				Help:      "Total number of alert commands by outcome",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "alert",
				Name:      "command_duration_seconds",
				Help:      "Alert command handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		ConcurrencyRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alert",
				Name:      "concurrency_retries_total",
				Help:      "Commands retried after an optimistic concurrency conflict",
			},
			[]string{"command"},
		),
		EventsAppendedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alert",
				Name:      "events_appended_total",
				Help:      "Total number of alert events appended to the event store",
			},
			[]string{"type"},
		),
		PublishFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alert",
				Name:      "publish_failures_total",
				Help:      "Stored events that could not be published to the bus",
			},
		),

		// Ingestion metrics
		IngestedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "messages_total",
				Help:      "Total number of ingested alert messages by result",
			},
			[]string{"result"},
		),

		// Projection metrics
		ProjectedEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "projection",
				Name:      "events_total",
				Help:      "Total number of events handled by the alert projector",
			},
			[]string{"type"},
		),
		ProjectionFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "projection",
				Name:      "flushes_total",
				Help:      "Total number of batch flushes by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		ProjectionBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "projection",
				Name:      "flush_batch_size",
				Help:      "Number of updates written per flush",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		ProjectionPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "projection",
				Name:      "pending_updates",
				Help:      "Updates waiting for the next flush",
			},
		),
		ProjectionDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "projection",
				Name:      "dropped_updates_total",
				Help:      "Updates discarded after a failed flush",
			},
		),
		ProjectionRebuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "projection",
				Name:      "rebuilds_total",
				Help:      "Total number of read-model rebuilds by result",
			},
			[]string{"result"},
		),

		// Event bus metrics
		DeliveryFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "eventbus",
				Name:      "delivery_failures_total",
				Help:      "Events a subscriber failed to handle after all retries",
			},
			[]string{"subscriber"},
		),

		// Database metrics
		DBQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
	}
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return InitMetrics("")
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveQuery records one database operation started at start. It is safe
// to call on a nil *Metrics.
func (m *Metrics) ObserveQuery(operation, table string, start time.Time) {
	if m == nil {
		return
	}
	m.DBQueriesTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
