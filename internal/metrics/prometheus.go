package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for invocation metrics
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	invocationsTotal        *prometheus.CounterVec
	notificationsTotal      *prometheus.CounterVec
	continuationPanicsTotal prometheus.Counter
	rpcRequestsTotal        *prometheus.CounterVec

	// Histograms
	invocationDuration *prometheus.HistogramVec
	rpcDuration        *prometheus.HistogramVec

	// Gauges
	uptime              prometheus.GaugeFunc
	invocationsInFlight prometheus.Gauge
}

// Default histogram buckets for invocation duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem. Until it is
// called every Record/Set function in this file is a no-op.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of completed asynchronous invocations",
			},
			[]string{"operation", "status"},
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of completion notifications fired",
			},
			[]string{"event"},
		),

		continuationPanicsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "continuation_panics_total",
				Help:      "Total number of recovered panics raised by continuations",
			},
		),

		rpcRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of gRPC requests served",
			},
			[]string{"method", "code"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_ms",
				Help:      "Time from invocation start to completion in milliseconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_duration_ms",
				Help:      "gRPC handler latency in milliseconds",
				Buckets:   buckets,
			},
			[]string{"method"},
		),

		invocationsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "invocations_in_flight",
				Help:      "Number of invocations started but not yet completed",
			},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.invocationsTotal,
		pm.notificationsTotal,
		pm.continuationPanicsTotal,
		pm.rpcRequestsTotal,
		pm.invocationDuration,
		pm.rpcDuration,
		pm.uptime,
		pm.invocationsInFlight,
	)

	promMetrics = pm
}

// RecordPrometheusInvocation records a completed invocation in Prometheus collectors
func RecordPrometheusInvocation(operation string, durationMs int64, success bool) {
	if promMetrics == nil {
		return
	}

	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.invocationsTotal.WithLabelValues(operation, status).Inc()
	promMetrics.invocationDuration.WithLabelValues(operation).Observe(float64(durationMs))
}

// RecordNotification records a fired completion event
func RecordNotification(event string) {
	if promMetrics == nil {
		return
	}
	promMetrics.notificationsTotal.WithLabelValues(event).Inc()
}

// RecordContinuationPanic records a recovered continuation panic
func RecordContinuationPanic() {
	if promMetrics == nil {
		return
	}
	promMetrics.continuationPanicsTotal.Inc()
}

// RecordRPC records a served gRPC request
func RecordRPC(method, code string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.rpcRequestsTotal.WithLabelValues(method, code).Inc()
	promMetrics.rpcDuration.WithLabelValues(method).Observe(durationMs)
}

// IncInFlight increments the in-flight invocations gauge
func IncInFlight() {
	if promMetrics == nil {
		return
	}
	promMetrics.invocationsInFlight.Inc()
}

// DecInFlight decrements the in-flight invocations gauge
func DecInFlight() {
	if promMetrics == nil {
		return
	}
	promMetrics.invocationsInFlight.Dec()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
