package metrics

import (
	"net/http"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/modkit/pkg/lifecycle"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "modkit"

// Observer records transitions and hook failures.
type Observer struct {
	transitions  *prometheus.CounterVec
	status       *prometheus.GaugeVec
	timeInStatus *prometheus.HistogramVec
	hookFailures *prometheus.CounterVec

	// last transition time per module, for timeInStatus
	entered cmap.ConcurrentMap[string, time.Time]

	registry *prometheus.Registry
}

var _ lifecycle.Observer = (*Observer)(nil)

// Option configures an Observer.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithBuckets sets the histogram buckets for time spent in a status.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// NewObserver creates an observer with its own registry.
func NewObserver(opts ...Option) *Observer {
	o := options{
		namespace: DefaultNamespace,
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()

	m := &Observer{
		registry: registry,
		entered:  cmap.New[time.Time](),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "module_transitions_total",
				Help:      "Total number of module status transitions",
			},
			[]string{"module", "from", "to"},
		),
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: o.namespace,
				Name:      "module_status",
				Help:      "Current module status (0=Uninitialized ... 5=Stopped)",
			},
			[]string{"module"},
		),
		timeInStatus: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "module_status_duration_seconds",
				Help:      "Time a module spent in a status before leaving it",
				Buckets:   o.buckets,
			},
			[]string{"module", "status"},
		),
		hookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "module_hook_failures_total",
				Help:      "Total number of lifecycle hook errors and panics",
			},
			[]string{"module", "hook"},
		),
	}

	registry.MustRegister(
		m.transitions,
		m.status,
		m.timeInStatus,
		m.hookFailures,
	)
	return m
}

// OnStatusChange implements lifecycle.Observer.
func (m *Observer) OnStatusChange(c lifecycle.StatusChange) {
	m.transitions.WithLabelValues(c.Module, c.Previous.String(), c.Current.String()).Inc()
	m.status.WithLabelValues(c.Module).Set(float64(c.Current))

	if prev, ok := m.entered.Get(c.Module); ok {
		m.timeInStatus.WithLabelValues(c.Module, c.Previous.String()).Observe(c.At.Sub(prev).Seconds())
	}
	m.entered.Set(c.Module, c.At)
}

// OnHookFailure implements lifecycle.Observer.
func (m *Observer) OnHookFailure(f lifecycle.HookFailure) {
	m.hookFailures.WithLabelValues(f.Module, f.Hook).Inc()
}

// Forget drops every series of a module, typically after it is removed
// from the orchestrator.
func (m *Observer) Forget(moduleID string) {
	labels := prometheus.Labels{"module": moduleID}
	m.transitions.DeletePartialMatch(labels)
	m.status.DeletePartialMatch(labels)
	m.timeInStatus.DeletePartialMatch(labels)
	m.hookFailures.DeletePartialMatch(labels)
	m.entered.Remove(moduleID)
}

// Registry returns the registry holding the observer's metrics.
func (m *Observer) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
