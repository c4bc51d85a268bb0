package lancar

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the call lifecycle and the
// client factory. It is safe for concurrent use and a nil collector records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	factoryClients      *prometheus.GaugeVec
	circuitBreakerState *prometheus.GaugeVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lancar_requests_total",
				Help: "Total number of completed HTTP calls",
			},
			[]string{"method", "status_code", "host"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lancar_request_duration_seconds",
				Help:    "Duration of HTTP calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "host"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lancar_requests_in_flight",
				Help: "Number of HTTP calls currently in flight",
			},
			[]string{"method", "host"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lancar_errors_total",
				Help: "Total number of failed calls by error type",
			},
			[]string{"type", "method", "host"},
		),
		factoryClients: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lancar_factory_clients",
				Help: "Number of clients cached by a client factory",
			},
			[]string{"factory"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lancar_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		registry: registry,
	}
}

// RecordRequest records call count and duration.
func (mc *MetricsCollector) RecordRequest(method, host string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, host).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, host).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, host string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, host).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, host string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, host).Dec()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, host string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, host).Inc()
}

// RecordFactoryClients sets the cached client gauge of a factory.
func (mc *MetricsCollector) RecordFactoryClients(factory string, n int) {
	if mc == nil {
		return
	}

	mc.factoryClients.WithLabelValues(factory).Set(float64(n))
}

// RecordCircuitBreakerState sets gauge to breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}

	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// GetRegistry exposes the underlying prometheus registry, or nil when the
// collector was built on a plain Registerer.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	reg, _ := mc.registry.(*prometheus.Registry)
	return reg
}
