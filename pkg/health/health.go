package health

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/module"
)

// DefaultStoppingThreshold is how long a module may stay in Stopping
// before liveness fails.
const DefaultStoppingThreshold = time.Minute

var (
	// ErrNotReady is returned by readiness checks.
	ErrNotReady = errors.New("modkit: modules not ready")

	// ErrStuck is returned by liveness checks.
	ErrStuck = errors.New("modkit: modules stuck in stopping")
)

// Registry is the view of the orchestrator the checks need.
type Registry interface {
	Modules() map[string]*module.Module
}

// Ready returns a check that passes when every module in ids is
// registered and Started. With no ids, every registered module must be
// Started.
func Ready(r Registry, ids ...string) healthcheck.Check {
	return func() error {
		mods := r.Modules()

		want := ids
		if len(want) == 0 {
			for id := range mods {
				want = append(want, id)
			}
		}

		var bad []string
		for _, id := range want {
			m, ok := mods[id]
			switch {
			case !ok:
				bad = append(bad, id+" (not registered)")
			case m.Status() != lifecycle.StatusStarted:
				bad = append(bad, fmt.Sprintf("%s (%s)", id, m.Status()))
			}
		}
		if len(bad) > 0 {
			sort.Strings(bad)
			return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(bad, ", "))
		}
		return nil
	}
}

// NotStuck returns a check that fails when any module has been in
// Stopping for longer than threshold.
func NotStuck(r Registry, threshold time.Duration) healthcheck.Check {
	return func() error {
		var stuck []string
		for id, m := range r.Modules() {
			if m.Status() != lifecycle.StatusStopping {
				continue
			}
			if d := time.Since(m.Since()); d > threshold {
				stuck = append(stuck, fmt.Sprintf("%s (%s)", id, d.Truncate(time.Second)))
			}
		}
		if len(stuck) > 0 {
			sort.Strings(stuck)
			return fmt.Errorf("%w: %s", ErrStuck, strings.Join(stuck, ", "))
		}
		return nil
	}
}

// Option configures NewHandler.
type Option func(*options)

type options struct {
	ready      []string
	threshold  time.Duration
	timeout    time.Duration
	registerer prometheus.Registerer
	namespace  string
}

// WithReady names the modules the readiness check waits for.
func WithReady(ids ...string) Option {
	return func(o *options) {
		o.ready = append(o.ready, ids...)
	}
}

// WithStoppingThreshold overrides DefaultStoppingThreshold.
func WithStoppingThreshold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.threshold = d
		}
	}
}

// WithCheckTimeout bounds each check's run time.
func WithCheckTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMetrics publishes check results as gauges on registerer.
func WithMetrics(registerer prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = registerer
		o.namespace = namespace
	}
}

// NewHandler returns a healthcheck.Handler serving /live and /ready for
// the modules in r.
func NewHandler(r Registry, opts ...Option) healthcheck.Handler {
	o := options{threshold: DefaultStoppingThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	var h healthcheck.Handler
	if o.registerer != nil {
		h = healthcheck.NewMetricsHandler(o.registerer, o.namespace)
	} else {
		h = healthcheck.NewHandler()
	}

	live := NotStuck(r, o.threshold)
	ready := Ready(r, o.ready...)
	if o.timeout > 0 {
		live = healthcheck.Timeout(live, o.timeout)
		ready = healthcheck.Timeout(ready, o.timeout)
	}

	h.AddLivenessCheck("modules-not-stuck", live)
	h.AddReadinessCheck("modules-started", ready)
	return h
}
