// Package metrics provides Prometheus metrics collection for tablegate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tablegate"

// Collector holds all Prometheus metrics for tablegate.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Supervisor metrics
	Reconfigurations *prometheus.CounterVec
	LiveListeners    prometheus.Gauge

	// Schema metrics
	SchemaMutations *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewWithRegistry creates a collector bound to reg. Each app owns its
// registry, so several can live in one process.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	return newCollector(reg, reg)
}

func newCollector(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		Reconfigurations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconfigurations_total",
				Help:      "Control messages handled by the listener supervisor",
			},
			[]string{"message", "outcome"},
		),
		LiveListeners: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_listeners",
				Help:      "Listener handles currently held by the supervisor",
			},
		),
		SchemaMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_mutations_total",
				Help:      "Entity definitions submitted, by outcome",
			},
			[]string{"outcome"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		gatherer: g,
	}
}

// Gatherer returns the registry the collector was registered with.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// ObserveReconfiguration counts one handled control message.
// Nil collectors are ignored so callers can run without metrics.
func (c *Collector) ObserveReconfiguration(message, outcome string) {
	if c == nil {
		return
	}
	c.Reconfigurations.WithLabelValues(message, outcome).Inc()
}

// SetLiveListeners records the size of the supervisor's handle collection.
func (c *Collector) SetLiveListeners(n int) {
	if c == nil {
		return
	}
	c.LiveListeners.Set(float64(n))
}

// ObserveSchemaMutation counts one entity definition by outcome.
func (c *Collector) ObserveSchemaMutation(outcome string) {
	if c == nil {
		return
	}
	c.SchemaMutations.WithLabelValues(outcome).Inc()
}

// ObserveConfigReload counts one reload attempt.
func (c *Collector) ObserveConfigReload(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
}

// UnmatchedRoute labels requests that matched no route. Arbitrary
// request paths share this one series.
const UnmatchedRoute = "unmatched"

// RouteLabel returns the path label for a matched route pattern.
func RouteLabel(pattern string) string {
	if pattern == "" {
		return UnmatchedRoute
	}
	return pattern
}
