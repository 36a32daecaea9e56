package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/bft-labs/modkit/pkg/config"
	"github.com/bft-labs/modkit/pkg/event"
	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
	"github.com/bft-labs/modkit/pkg/module"
)

// Orchestrator owns a registry of modules keyed by id and the worker
// pool their run bodies execute on.
type Orchestrator struct {
	mu  sync.RWMutex
	cfg config.Config

	modules cmap.ConcurrentMap[string, *module.Module]
	pool    *ants.Pool
	opts    options
	logger  log.Logger
}

// New creates an orchestrator. cfg is validated; the pool starts at
// cfg.PoolSize workers and grows with the registry.
func New(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	orc := &Orchestrator{
		cfg:     cfg,
		modules: cmap.New[*module.Module](),
		opts:    o,
		logger:  log.With(o.logger, log.String("component", "orchestrator")),
	}
	if o.panicHandler == nil {
		orc.opts.panicHandler = orc.logPanic
	}

	pool, err := newPool(max(cfg.PoolSize, 1), orc.logger, orc.opts.panicHandler)
	if err != nil {
		return nil, err
	}
	orc.pool = pool
	return orc, nil
}

// Config returns the configuration currently in effect.
func (o *Orchestrator) Config() config.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// Executor returns the executor backed by the orchestrator's pool.
func (o *Orchestrator) Executor() module.Executor {
	return poolExecutor{pool: o.pool}
}

// Register constructs a module around hooks with the orchestrator's
// executor, logger and observers, then adds it. opts are applied after
// those defaults and may override them.
func (o *Orchestrator) Register(hooks lifecycle.Lifecycle, opts ...module.Option) (*module.Module, error) {
	base := []module.Option{
		module.WithExecutor(o.Executor()),
		module.WithLogger(o.opts.logger),
	}
	for _, obs := range o.opts.observers {
		base = append(base, module.WithObserver(obs))
	}

	m, err := module.New(hooks, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	o.Add(m)
	return m, nil
}

// RegisterBus builds an event dispatcher sized by the configured
// QueueHint, registers it as a module and subscribes ConfigListener to
// it. opts are applied after those defaults. The dispatcher is not
// started.
func (o *Orchestrator) RegisterBus(opts ...event.Option) (*event.Dispatcher, *module.Module, error) {
	base := []event.Option{
		event.WithQueueHint(o.Config().QueueHint),
		event.WithLogger(o.opts.logger),
	}
	bus := event.NewDispatcher(append(base, opts...)...)

	m, err := o.Register(bus)
	if err != nil {
		return nil, nil, err
	}
	bus.Register(o.ConfigListener())
	return bus, m, nil
}

// Add registers modules under their ids. An existing entry with the same
// id is replaced. Nil modules are skipped.
func (o *Orchestrator) Add(ms ...*module.Module) {
	for _, m := range ms {
		if m == nil {
			continue
		}
		o.modules.Set(m.ID(), m)
		o.logger.Debug("module registered", log.String("module", m.ID()))
	}
	o.tune()
}

// Remove unregisters the modules with the given ids. Modules are not
// stopped. Unknown ids are ignored.
func (o *Orchestrator) Remove(ids ...string) {
	for _, id := range ids {
		if _, ok := o.modules.Pop(id); ok {
			o.logger.Debug("module removed", log.String("module", id))
		}
	}
}

// RemoveModule unregisters each module if it is still the one registered
// under its id.
func (o *Orchestrator) RemoveModule(ms ...*module.Module) {
	for _, m := range ms {
		if m == nil {
			continue
		}
		removed := o.modules.RemoveCb(m.ID(), func(_ string, v *module.Module, exists bool) bool {
			return exists && v == m
		})
		if removed {
			o.logger.Debug("module removed", log.String("module", m.ID()))
		}
	}
}

// Get returns the module registered under id.
func (o *Orchestrator) Get(id string) (*module.Module, bool) {
	return o.modules.Get(id)
}

// Modules returns a snapshot of the registry.
func (o *Orchestrator) Modules() map[string]*module.Module {
	return o.modules.Items()
}

// Len returns the number of registered modules.
func (o *Orchestrator) Len() int {
	return o.modules.Count()
}

// Reconfigure applies a new wait timeout and pool size. Running modules
// are not affected; the pool never shrinks below the registry size.
func (o *Orchestrator) Reconfigure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()

	o.tune()
	o.logger.Info("configuration applied",
		log.Duration("wait_timeout", cfg.WaitTimeout),
		log.Int("pool_size", cfg.PoolSize),
	)
	return nil
}

// ConfigListener returns a bus listener that applies every
// config.ConfigChanged event through Reconfigure.
func (o *Orchestrator) ConfigListener() event.Listener {
	return event.Listen(func(ev config.ConfigChanged) {
		if err := o.Reconfigure(ev.Config); err != nil {
			o.logger.Warn("ignoring configuration change",
				log.String("path", ev.Path),
				log.Err(err),
			)
		}
	})
}

// Close stops every module and releases the worker pool, waiting for
// running bodies up to ctx's deadline or the wait timeout.
func (o *Orchestrator) Close(ctx context.Context) error {
	stopErr := o.StopAll(ctx)

	timeout := o.Config().WaitTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	var releaseErr error
	if err := o.pool.ReleaseTimeout(timeout); err != nil && !errors.Is(err, ants.ErrPoolClosed) {
		releaseErr = fmt.Errorf("release worker pool: %w", err)
	}
	return errors.Join(stopErr, releaseErr)
}

// tune sets the pool to max(PoolSize, registry size), never below the
// workers currently running.
func (o *Orchestrator) tune() {
	size := max(o.Config().PoolSize, o.Len(), o.pool.Running(), 1)
	if o.pool.Cap() != size {
		o.pool.Tune(size)
		o.logger.Debug("worker pool tuned", log.Int("size", size))
	}
}

func (o *Orchestrator) logPanic(p any) {
	o.logger.Error("run body panicked on worker pool", log.Any("panic", p))
}
