package module

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
)

// Start moves an Instanced or Stopped module to Starting and submits the
// run body to the executor. It returns without waiting for OnStarted,
// though a bounded executor may hold it until a worker is free.
// From any other status Start logs a warning and does nothing.
//
// A Stopped module whose previous body has not returned yet (Busy) is
// not restarted either: Start warns and leaves it Stopped. Callers that
// need the restart to happen wait for !Busy first, as
// orchestrator.Start does.
func (m *Module) Start() {
	from := m.Status()
	if !lifecycle.CanStart(from) {
		m.logger.Warn("module already started", log.Stringer("status", from))
		return
	}

	if !m.busy.CompareAndSwap(false, true) {
		m.logger.Warn("previous run still draining", log.Stringer("status", from))
		return
	}

	if !m.transition(from, lifecycle.StatusStarting, "start requested") {
		m.busy.Store(false)
		m.broadcast()
		m.logger.Warn("illegal state for start", log.Stringer("status", m.Status()))
		return
	}

	if err := m.executor.Submit(m.run); err != nil {
		m.busy.Store(false)
		m.set(lifecycle.StatusStarting, from, "executor rejected run")
		m.logger.Error("failed to submit run", log.Err(err))
		m.exception(fmt.Errorf("%w: %v", ErrExecutorRejected, err))
	}
}

// run is the body executed on the module's execution context.
func (m *Module) run() {
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		m.busy.Store(false)
		m.broadcast()
	}
	defer release()

	if s := m.Status(); !lifecycle.CanRun(s) {
		m.logger.Warn("illegal state for run", log.Stringer("status", s))
		return
	}

	ctx := withModule(m.ctx, m)
	if err := m.invoke(ctx, HookStarted, func() error { return m.hooks.OnStarted(ctx) }); err != nil {
		m.fail(HookStarted, err)
	}

	// Bodies that never called Ready are promoted here so the stop below is legal.
	m.promote("run returned")

	if m.Status() < lifecycle.StatusStopping {
		m.stop("run returned", release)
	}
}

// Stop moves a Started module to Stopping, runs OnStopped on the calling
// goroutine and then marks it Stopped. From any other status Stop logs a
// warning and does nothing. If OnStopped fails the module is left in
// Stopping.
func (m *Module) Stop() {
	m.stop("stop requested", nil)
}

// stop performs the Started -> Stopping -> Stopped pass. beforeStopped,
// when set, runs between OnStopped and the final transition; the run body
// uses it to clear the busy flag so Stopped is never observed while busy.
func (m *Module) stop(reason string, beforeStopped func()) {
	if !m.transition(lifecycle.StatusStarted, lifecycle.StatusStopping, reason) {
		m.logger.Warn("illegal state for stop", log.Stringer("status", m.Status()))
		return
	}

	if err := m.invoke(m.ctx, HookStopped, m.hooks.OnStopped); err != nil {
		m.fail(HookStopped, err)
		m.logger.Error("module left in stopping state")
		return
	}

	if beforeStopped != nil {
		beforeStopped()
	}
	m.transition(lifecycle.StatusStopping, lifecycle.StatusStopped, reason)
}

// instance runs OnInstanced inside a span. Panics propagate to New's caller.
func (m *Module) instance() (err error) {
	_, span := m.startSpan(m.ctx, HookInstanced)
	defer func() {
		endSpan(span, err)
	}()
	return m.hooks.OnInstanced()
}

// invoke calls fn inside a span and converts a panic into an error.
func (m *Module) invoke(ctx context.Context, hook string, fn func() error) (err error) {
	_, span := m.startSpan(ctx, hook)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", lifecycle.ErrHookPanic, r)
		}
		endSpan(span, err)
	}()
	return fn()
}

func (m *Module) startSpan(ctx context.Context, hook string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "modkit."+hook,
		trace.WithAttributes(
			attribute.String("modkit.module", m.id),
			attribute.String("modkit.status", m.Status().String()),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// fail reports a hook failure to the log, the observers and OnException.
func (m *Module) fail(hook string, err error) {
	m.logger.Error("hook failed", log.String("hook", hook), log.Err(err))
	m.observer.OnHookFailure(lifecycle.HookFailure{Module: m.id, Hook: hook, Err: err})
	m.exception(err)
}

// exception calls OnException. A panic there is logged and swallowed so
// the execution context survives.
func (m *Module) exception(err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("OnException panicked", log.Any("panic", r))
		}
	}()
	m.hooks.OnException(err)
}
