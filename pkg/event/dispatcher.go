package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
	"github.com/bft-labs/modkit/pkg/module"
)

// Dispatcher is a queue-backed Bus that runs as a module. Post enqueues;
// the run body drains the queue and calls matching listeners one event at
// a time, in post order. Events still queued at stop are delivered by
// OnStopped after the body's current batch, keeping that order. Listener
// panics are logged and do not stop delivery.
//
// Listeners must not stop the dispatcher's module synchronously from
// OnEvent: OnStopped waits for the batch being delivered.
type Dispatcher struct {
	opts      options
	logger    log.Logger
	queue     atomic.Pointer[queue.Queue]
	listeners cmap.ConcurrentMap[string, Listener]

	// delivering is held by whoever is taking events out of the queue
	// and handing them to listeners.
	delivering sync.Mutex
}

var (
	_ Bus                 = (*Dispatcher)(nil)
	_ lifecycle.Lifecycle = (*Dispatcher)(nil)
)

// NewDispatcher creates a dispatcher. Wrap it with module.New to run it.
func NewDispatcher(opts ...Option) *Dispatcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{
		opts:      o,
		logger:    log.With(o.logger, log.String("component", "event")),
		listeners: cmap.New[Listener](),
	}
	d.queue.Store(queue.New(o.queueHint))
	return d
}

// ID returns the id set with WithID, or "" to use the type name.
func (d *Dispatcher) ID() string {
	return d.opts.id
}

// Register adds l and returns its id. A nil listener is ignored and
// yields "".
func (d *Dispatcher) Register(l Listener) string {
	if l == nil {
		return ""
	}
	id := uuid.NewString()
	d.listeners.Set(id, l)
	d.logger.Debug("listener registered", log.String("listener", id))
	return id
}

// Unregister removes the listener with the given id.
func (d *Dispatcher) Unregister(id string) {
	d.listeners.Remove(id)
}

// QueueHint returns the initial capacity used for the queue.
func (d *Dispatcher) QueueHint() int {
	return int(d.opts.queueHint)
}

// Listeners returns the number of registered listeners.
func (d *Dispatcher) Listeners() int {
	return d.listeners.Count()
}

// Pending returns the number of queued, undelivered events.
func (d *Dispatcher) Pending() int64 {
	return d.queue.Load().Len()
}

// Post enqueues ev for delivery. Events posted before the dispatcher
// starts are held until it does.
func (d *Dispatcher) Post(ev any) error {
	if ev == nil {
		return ErrNilEvent
	}
	if err := d.queue.Load().Put(ev); err != nil {
		if errors.Is(err, queue.ErrDisposed) {
			return ErrBusClosed
		}
		return fmt.Errorf("post %s: %w", TypeName(ev), err)
	}
	return nil
}

// OnInstanced implements lifecycle.Lifecycle.
func (d *Dispatcher) OnInstanced() error {
	return nil
}

// OnStarted drains the queue until OnStopped disposes it.
func (d *Dispatcher) OnStarted(ctx context.Context) error {
	q := d.queue.Load()
	if q.Disposed() {
		q = queue.New(d.opts.queueHint)
		d.queue.Store(q)
	}
	module.Ready(ctx)

	for {
		if err := d.drain(q); err != nil {
			if errors.Is(err, queue.ErrDisposed) {
				return nil
			}
			return fmt.Errorf("drain event queue: %w", err)
		}
	}
}

// drain takes one batch from q and delivers it. The lock is held while
// Get waits, so a batch taken before Dispose is delivered before anything
// OnStopped flushes.
func (d *Dispatcher) drain(q *queue.Queue) error {
	d.delivering.Lock()
	defer d.delivering.Unlock()

	items, err := q.Get(d.opts.batchSize)
	if err != nil {
		return err
	}
	for _, ev := range items {
		d.deliver(ev)
	}
	return nil
}

// OnStopped closes the queue, waits for the batch in flight, then delivers
// whatever was still pending on the calling goroutine.
func (d *Dispatcher) OnStopped() error {
	pending := d.queue.Load().Dispose()

	d.delivering.Lock()
	defer d.delivering.Unlock()

	if len(pending) > 0 {
		d.logger.Debug("flushing pending events", log.Int("count", len(pending)))
	}
	for _, ev := range pending {
		d.deliver(ev)
	}
	return nil
}

// OnException implements lifecycle.Lifecycle.
func (d *Dispatcher) OnException(err error) {
	d.logger.Error("dispatcher failed", log.Err(err))
}

func (d *Dispatcher) deliver(ev any) {
	delivered := 0
	for item := range d.listeners.IterBuffered() {
		if d.notify(item.Key, item.Val, ev) {
			delivered++
		}
	}
	if delivered == 0 {
		d.logger.Debug("no listener for event", log.String("event", TypeName(ev)))
	}
}

// notify calls l for ev if it matches. Reports whether l matched.
func (d *Dispatcher) notify(id string, l Listener, ev any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked",
				log.String("listener", id),
				log.String("event", TypeName(ev)),
				log.Any("panic", r),
			)
		}
	}()
	if !l.Match(ev) {
		return false
	}
	matched = true
	l.OnEvent(ev)
	return matched
}
