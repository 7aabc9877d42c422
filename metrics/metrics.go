// Package metrics exposes Prometheus collectors for the reconciliation
// pipeline. Collector satisfies the observer hooks of the dispatcher, the
// dedup gate, the batch lifecycle and the downstream breakers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-manufacture/dispatcher"
	"github.com/goliatone/go-manufacture/part"
)

const namespace = "manufacture"

type Collector struct {
	registry *prometheus.Registry

	handlerTotal    *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	dedupTotal      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	breakerTrips    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, or on registry when given.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		handlerTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_executions_total",
				Help:      "Handler executions by message type, handler and outcome",
			},
			[]string{"message_type", "handler", "outcome"},
		),
		handlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Handler execution time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"message_type", "handler"},
		),
		dedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dedup_lookups_total",
				Help:      "Deduplication lookups by namespace and result",
			},
			[]string{"namespace", "result"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "part_transitions_total",
				Help:      "Batch status transitions",
			},
			[]string{"from", "to"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		breakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_trips_total",
				Help:      "Circuit breaker transitions to open",
			},
			[]string{"name"},
		),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collector) ObserveHandler(msgType, handler string, outcome dispatcher.Outcome, elapsed time.Duration) {
	c.handlerTotal.WithLabelValues(msgType, handler, string(outcome)).Inc()
	c.handlerDuration.WithLabelValues(msgType, handler).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveDedup(namespace string, executed bool) {
	result := "miss"
	if executed {
		result = "hit"
	}
	c.dedupTotal.WithLabelValues(namespace, result).Inc()
}

func (c *Collector) ObserveTransition(from, to part.Status) {
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// BreakerStateChanged matches ports.StateListener.
func (c *Collector) BreakerStateChanged(name, _, to string) {
	state := 0.0
	switch to {
	case "half-open":
		state = 1
	case "open":
		state = 2
		c.breakerTrips.WithLabelValues(name).Inc()
	}
	c.breakerState.WithLabelValues(name).Set(state)
}
