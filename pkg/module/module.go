package module

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
)

// Module owns one lifecycle.Lifecycle and its status.
// Use New to create one; the zero value is not usable.
type Module struct {
	id    string
	hooks lifecycle.Lifecycle

	status atomic.Int32
	since  atomic.Int64
	busy   atomic.Bool

	// mu serializes transitions with waiters taking a snapshot.
	mu      sync.Mutex
	changed chan struct{}

	executor Executor
	logger   log.Logger
	observer lifecycle.Observers
	tracer   trace.Tracer
	ctx      context.Context
}

// New constructs a module around hooks. OnInstanced runs synchronously on
// the caller's goroutine; if it fails New returns a *HookError and the
// module never becomes Instanced. Panics from OnInstanced are not recovered.
func New(hooks lifecycle.Lifecycle, opts ...Option) (*Module, error) {
	if hooks == nil {
		return nil, ErrNilLifecycle
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := o.id
	if id == "" {
		id = Identity(hooks)
	}

	m := &Module{
		id:       id,
		hooks:    hooks,
		changed:  make(chan struct{}),
		executor: o.executor,
		logger:   log.With(o.logger, log.String("module", id)),
		observer: o.observers,
		tracer:   o.tracer,
		ctx:      o.ctx,
	}
	m.since.Store(time.Now().UnixNano())

	if err := m.instance(); err != nil {
		m.logger.Error("module construction failed", log.Err(err))
		return nil, &HookError{Module: id, Hook: HookInstanced, Err: err}
	}

	m.transition(lifecycle.StatusUninitialized, lifecycle.StatusInstanced, "constructed")
	return m, nil
}

// Identity returns the registry key for hooks: its ID when it implements
// lifecycle.Identifier, otherwise its Go type name.
func Identity(hooks lifecycle.Lifecycle) string {
	if ider, ok := hooks.(lifecycle.Identifier); ok {
		if id := ider.ID(); id != "" {
			return id
		}
	}
	return fmt.Sprintf("%T", hooks)
}

// ID returns the module's registry key.
func (m *Module) ID() string {
	return m.id
}

// Hooks returns the lifecycle implementation the module drives.
func (m *Module) Hooks() lifecycle.Lifecycle {
	return m.hooks
}

// Status returns the current status. Safe to call from any goroutine.
func (m *Module) Status() lifecycle.Status {
	return lifecycle.Status(m.status.Load())
}

// Since returns the time of the last status change.
func (m *Module) Since() time.Time {
	return time.Unix(0, m.since.Load())
}

// Busy reports whether a run body is still executing. A module can be
// Stopped and still busy when an external Stop finished before OnStarted
// returned.
func (m *Module) Busy() bool {
	return m.busy.Load()
}

// Await blocks until cond holds for the current status or ctx is done.
// cond is re-evaluated after every transition and when a run body exits.
// A status seen by cond has already been reported to every observer.
func (m *Module) Await(ctx context.Context, cond func(lifecycle.Status) bool) (lifecycle.Status, error) {
	for {
		ch, s := m.snapshot()
		if cond(s) {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return m.Status(), ctx.Err()
		}
	}
}

// snapshot returns the status together with the channel closed by the
// next change.
func (m *Module) snapshot() (<-chan struct{}, lifecycle.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed, m.Status()
}

// broadcast wakes every waiter.
func (m *Module) broadcast() {
	m.mu.Lock()
	m.wakeLocked()
	m.mu.Unlock()
}

func (m *Module) wakeLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// transition moves the status from -> to if that is a valid edge and the
// status still equals from. Returns false when another writer got there
// first or the edge is illegal.
func (m *Module) transition(from, to lifecycle.Status, reason string) bool {
	if !lifecycle.ValidTransition(from, to) {
		return false
	}
	return m.set(from, to, reason)
}

// set stores to over from without consulting the transition table.
// Observers run under mu, so they must not call back into the module.
func (m *Module) set(from, to lifecycle.Status, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	now := time.Now()
	m.since.Store(now.UnixNano())

	m.observer.OnStatusChange(lifecycle.StatusChange{
		Module:   m.id,
		Previous: from,
		Current:  to,
		Reason:   reason,
		At:       now,
	})

	m.logger.Info("state transition",
		log.Stringer("from", from),
		log.Stringer("to", to),
		log.String("reason", reason),
	)

	m.wakeLocked()
	return true
}

func (m *Module) promote(reason string) bool {
	return m.transition(lifecycle.StatusStarting, lifecycle.StatusStarted, reason)
}
