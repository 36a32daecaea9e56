package module

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modkit/pkg/lifecycle"
)

const testTimeout = 5 * time.Second

// probe is a configurable Lifecycle that records what it observes.
type probe struct {
	lifecycle.Base

	mod atomic.Pointer[Module]

	instanceErr  error
	startedErr   error
	startedPanic interface{}
	stoppedErr   error
	callReady    bool

	// release, when non-nil, blocks OnStarted until closed.
	release chan struct{}
	// stopGate, when non-nil, blocks OnStopped until closed.
	stopGate chan struct{}

	starts atomic.Int32
	stops  atomic.Int32

	mu          sync.Mutex
	startedSaw  []lifecycle.Status
	stoppedSaw  []lifecycle.Status
	exceptions  []error
	releaseOnce sync.Once
}

func (p *probe) OnInstanced() error { return p.instanceErr }

func (p *probe) OnStarted(ctx context.Context) error {
	p.starts.Add(1)
	m, _ := FromContext(ctx)
	p.mu.Lock()
	p.startedSaw = append(p.startedSaw, m.Status())
	p.mu.Unlock()

	if p.callReady {
		Ready(ctx)
	}
	if p.release != nil {
		<-p.release
	}
	if p.startedPanic != nil {
		panic(p.startedPanic)
	}
	return p.startedErr
}

func (p *probe) OnStopped() error {
	p.stops.Add(1)
	p.mu.Lock()
	p.stoppedSaw = append(p.stoppedSaw, p.mod.Load().Status())
	p.mu.Unlock()

	if p.stopGate != nil {
		<-p.stopGate
	}
	p.Release()
	return p.stoppedErr
}

// Release unblocks OnStarted. Safe to call more than once.
func (p *probe) Release() {
	if p.release != nil {
		p.releaseOnce.Do(func() { close(p.release) })
	}
}

func (p *probe) OnException(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exceptions = append(p.exceptions, err)
}

func (p *probe) Exceptions() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error{}, p.exceptions...)
}

// recorder is an Observer capturing every notification.
type recorder struct {
	mu       sync.Mutex
	changes  []lifecycle.StatusChange
	failures []lifecycle.HookFailure
}

func (r *recorder) OnStatusChange(c lifecycle.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) OnHookFailure(f lifecycle.HookFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *recorder) Sequence() []lifecycle.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]lifecycle.Status, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Current)
	}
	return out
}

// manualExecutor holds submitted tasks until the test runs them.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *manualExecutor) Submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return nil
}

func (e *manualExecutor) RunNext(t *testing.T) {
	t.Helper()
	e.mu.Lock()
	require.NotEmpty(t, e.tasks, "no submitted task")
	task := e.tasks[0]
	e.tasks = e.tasks[1:]
	e.mu.Unlock()
	go task()
}

func newProbeModule(t *testing.T, p *probe, opts ...Option) *Module {
	t.Helper()
	m, err := New(p, opts...)
	require.NoError(t, err)
	p.mod.Store(m)
	return m
}

func awaitStatus(t *testing.T, m *Module, want lifecycle.Status) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	got, err := m.Await(ctx, func(s lifecycle.Status) bool { return s == want })
	require.NoError(t, err, "waiting for %s, last status %s", want, got)
}

func awaitIdle(t *testing.T, m *Module) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err := m.Await(ctx, func(lifecycle.Status) bool { return !m.Busy() })
	require.NoError(t, err)
}

func TestNew_IsInstanced(t *testing.T) {
	rec := &recorder{}
	m := newProbeModule(t, &probe{}, WithObserver(rec))

	assert.Equal(t, lifecycle.StatusInstanced, m.Status())
	assert.Equal(t, "*module.probe", m.ID())
	assert.False(t, m.Busy())
	assert.Equal(t, []lifecycle.Status{lifecycle.StatusInstanced}, rec.Sequence())
}

func TestNew_OnInstancedSeesUninitialized(t *testing.T) {
	rec := &recorder{}
	var seen int
	hooks := &instanceSpy{onInstanced: func() { seen = len(rec.Sequence()) }}

	_, err := New(hooks, WithObserver(rec))
	require.NoError(t, err)
	assert.Equal(t, 0, seen, "OnInstanced must run before any transition")
}

type instanceSpy struct {
	lifecycle.Base
	onInstanced func()
}

func (s *instanceSpy) OnInstanced() error {
	s.onInstanced()
	return nil
}

func TestNew_ConstructionFailure(t *testing.T) {
	boom := errors.New("no database")
	m, err := New(&probe{instanceErr: boom})

	assert.Nil(t, m)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, HookInstanced, hookErr.Hook)
}

func TestNew_NilLifecycle(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilLifecycle)
}

type namedHooks struct{ lifecycle.Base }

func (namedHooks) ID() string { return "api-server" }

func TestIdentity(t *testing.T) {
	m, err := New(namedHooks{})
	require.NoError(t, err)
	assert.Equal(t, "api-server", m.ID())

	m, err = New(namedHooks{}, WithID("override"))
	require.NoError(t, err)
	assert.Equal(t, "override", m.ID())
}

func TestStart_SetsStartingBeforeReturn(t *testing.T) {
	exec := &manualExecutor{}
	p := &probe{}
	m := newProbeModule(t, p, WithExecutor(exec))

	m.Start()
	assert.Equal(t, lifecycle.StatusStarting, m.Status())
	assert.True(t, m.Busy())

	exec.RunNext(t)
	awaitStatus(t, m, lifecycle.StatusStopped)
	awaitIdle(t, m)

	assert.Equal(t, []lifecycle.Status{lifecycle.StatusStarting}, p.startedSaw)
	assert.Equal(t, []lifecycle.Status{lifecycle.StatusStopping}, p.stoppedSaw)
	assert.EqualValues(t, 1, p.stops.Load())
}

func TestStart_QuickBodyPassesThroughStarted(t *testing.T) {
	rec := &recorder{}
	m := newProbeModule(t, &probe{}, WithObserver(rec))

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStopped)

	assert.Equal(t, []lifecycle.Status{
		lifecycle.StatusInstanced,
		lifecycle.StatusStarting,
		lifecycle.StatusStarted,
		lifecycle.StatusStopping,
		lifecycle.StatusStopped,
	}, rec.Sequence())
}

func TestStart_NoopWhileStarting(t *testing.T) {
	exec := &manualExecutor{}
	m := newProbeModule(t, &probe{}, WithExecutor(exec))

	m.Start()
	m.Start()

	assert.Equal(t, lifecycle.StatusStarting, m.Status())
	exec.mu.Lock()
	assert.Len(t, exec.tasks, 1, "second Start must not submit")
	exec.mu.Unlock()
}

func TestStart_NoopWhileStarted(t *testing.T) {
	p := &probe{callReady: true, release: make(chan struct{})}
	m := newProbeModule(t, p)

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStarted)

	m.Start()
	assert.Equal(t, lifecycle.StatusStarted, m.Status())
	assert.EqualValues(t, 1, p.starts.Load())

	m.Stop()
	awaitIdle(t, m)
}

func TestStart_NoopWhileStopping(t *testing.T) {
	gate := make(chan struct{})
	p := &probe{callReady: true, release: make(chan struct{}), stopGate: gate}
	m := newProbeModule(t, p)

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStarted)

	go m.Stop()
	awaitStatus(t, m, lifecycle.StatusStopping)

	m.Start()
	assert.Equal(t, lifecycle.StatusStopping, m.Status())

	close(gate)
	awaitStatus(t, m, lifecycle.StatusStopped)
	awaitIdle(t, m)
}

func TestStop_NoopUnlessStarted(t *testing.T) {
	exec := &manualExecutor{}
	p := &probe{}
	m := newProbeModule(t, p, WithExecutor(exec))

	m.Stop()
	assert.Equal(t, lifecycle.StatusInstanced, m.Status())

	m.Start()
	m.Stop()
	assert.Equal(t, lifecycle.StatusStarting, m.Status())
	assert.EqualValues(t, 0, p.stops.Load())
}

func TestStop_ExternalWhileRunning(t *testing.T) {
	rec := &recorder{}
	p := &probe{callReady: true, release: make(chan struct{})}
	m := newProbeModule(t, p, WithObserver(rec))

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStarted)

	m.Stop()
	assert.Equal(t, lifecycle.StatusStopped, m.Status())

	awaitIdle(t, m)
	assert.Equal(t, lifecycle.StatusStopped, m.Status())
	assert.EqualValues(t, 1, p.stops.Load(), "auto-stop must not run a second OnStopped")
}

func TestRun_HookErrorForwardedOnce(t *testing.T) {
	boom := errors.New("upstream unavailable")
	rec := &recorder{}
	p := &probe{startedErr: boom}
	m := newProbeModule(t, p, WithObserver(rec))

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStopped)

	exceptions := p.Exceptions()
	require.Len(t, exceptions, 1)
	assert.Same(t, boom, exceptions[0])

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.failures, 1)
	assert.Equal(t, HookStarted, rec.failures[0].Hook)
}

func TestRun_PanicRecovered(t *testing.T) {
	p := &probe{startedPanic: "nil map"}
	m := newProbeModule(t, p)

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStopped)

	exceptions := p.Exceptions()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], lifecycle.ErrHookPanic)
}

func TestStop_FailureLeavesStopping(t *testing.T) {
	boom := errors.New("flush failed")
	p := &probe{stoppedErr: boom}
	m := newProbeModule(t, p)

	m.Start()
	awaitIdle(t, m)

	assert.Equal(t, lifecycle.StatusStopping, m.Status())
	exceptions := p.Exceptions()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], boom)

	m.Start()
	assert.Equal(t, lifecycle.StatusStopping, m.Status())
}

func TestTwoCycles(t *testing.T) {
	p := &probe{}
	m := newProbeModule(t, p)

	for i := 0; i < 2; i++ {
		m.Start()
		awaitStatus(t, m, lifecycle.StatusStopped)
	}

	awaitIdle(t, m)
	assert.EqualValues(t, 2, p.starts.Load())
	assert.EqualValues(t, 2, p.stops.Load())
}

func TestReady_ReachesStartedBeforeStopped(t *testing.T) {
	rec := &recorder{}
	p := &probe{callReady: true, release: make(chan struct{})}
	m := newProbeModule(t, p, WithObserver(rec))

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStarted)
	assert.True(t, m.Busy())

	p.Release()
	awaitStatus(t, m, lifecycle.StatusStopped)

	seq := rec.Sequence()
	assert.Equal(t, lifecycle.StatusStarted, seq[2])
	assert.Equal(t, lifecycle.StatusStopped, seq[len(seq)-1])
}

func TestReady_WithoutModule(t *testing.T) {
	assert.False(t, Ready(context.Background()))
}

func TestStart_ExecutorRejected(t *testing.T) {
	reject := ExecutorFunc(func(func()) error { return errors.New("pool closed") })
	p := &probe{}
	m := newProbeModule(t, p, WithExecutor(reject))

	m.Start()

	assert.Equal(t, lifecycle.StatusInstanced, m.Status())
	assert.False(t, m.Busy())
	exceptions := p.Exceptions()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], ErrExecutorRejected)
}

// lingering reports ready and keeps its body running until hold closes,
// whether or not the module was stopped.
type lingering struct {
	lifecycle.Base
	hold   chan struct{}
	starts atomic.Int32
}

func (l *lingering) OnStarted(ctx context.Context) error {
	l.starts.Add(1)
	Ready(ctx)
	<-l.hold
	return nil
}

func TestStart_RefusedWhileBodyDraining(t *testing.T) {
	hooks := &lingering{hold: make(chan struct{})}
	m, err := New(hooks)
	require.NoError(t, err)

	m.Start()
	awaitStatus(t, m, lifecycle.StatusStarted)
	m.Stop()
	require.Equal(t, lifecycle.StatusStopped, m.Status())
	require.True(t, m.Busy())

	m.Start()
	assert.Equal(t, lifecycle.StatusStopped, m.Status())
	assert.EqualValues(t, 1, hooks.starts.Load())

	close(hooks.hold)
	awaitIdle(t, m)

	m.Start()
	awaitIdle(t, m)
	assert.Equal(t, lifecycle.StatusStopped, m.Status())
	assert.EqualValues(t, 2, hooks.starts.Load())
}

func TestAwait_ContextDone(t *testing.T) {
	m := newProbeModule(t, &probe{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := m.Await(ctx, func(s lifecycle.Status) bool { return s == lifecycle.StatusStarted })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, lifecycle.StatusInstanced, got)
}

func TestSince_Advances(t *testing.T) {
	m := newProbeModule(t, &probe{})
	before := m.Since()

	time.Sleep(time.Millisecond)
	m.Start()
	awaitStatus(t, m, lifecycle.StatusStopped)

	assert.True(t, m.Since().After(before))
}
