// Package metrics holds the Prometheus collectors for a plugin process.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records JSON-RPC calls and live instances. It satisfies
// jsonrpc.Observer and can be fed from instance.Hooks.
type Metrics struct {
	registry  *prometheus.Registry
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	instances *prometheus.GaugeVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_rpc_requests_total",
				Help: "Total number of JSON-RPC requests by method and error code",
			},
			[]string{"method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugin_rpc_duration_seconds",
				Help:    "Duration of JSON-RPC requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		instances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugin_instances",
				Help: "Number of live instances by kind and class",
			},
			[]string{"kind", "class"},
		),
	}
	m.registry.MustRegister(m.calls, m.duration, m.instances)
	return m
}

// ObserveCall records one JSON-RPC request. Requests that do not name a
// registered method are recorded under method "".
func (m *Metrics) ObserveCall(method string, code int, elapsed time.Duration) {
	m.calls.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// InstanceStarted increments the live-instance gauge.
func (m *Metrics) InstanceStarted(kind, class string) {
	m.instances.WithLabelValues(kind, class).Inc()
}

// InstanceStopped decrements the live-instance gauge.
func (m *Metrics) InstanceStopped(kind, class string) {
	m.instances.WithLabelValues(kind, class).Dec()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus text exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
