package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
	"github.com/bft-labs/modkit/pkg/module"
)

// Start starts the module registered under id once it is in a state that
// allows it. Unknown ids and modules that cannot be started are logged
// and skipped. The only error is ErrWaitTimeout.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	m, ok := o.Get(id)
	if !ok {
		o.logger.Debug("start skipped, module not registered", log.String("module", id))
		return nil
	}
	return o.start(ctx, m)
}

// Stop stops the module registered under id once it has finished
// starting. Unknown ids and modules that are not running are logged and
// skipped. The only error is ErrWaitTimeout.
func (o *Orchestrator) Stop(ctx context.Context, id string) error {
	m, ok := o.Get(id)
	if !ok {
		o.logger.Debug("stop skipped, module not registered", log.String("module", id))
		return nil
	}
	return o.stop(ctx, m)
}

// StartAll runs Start for every registered module concurrently and
// returns the joined wait errors.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	return o.each(ctx, o.start)
}

// StopAll runs Stop for every registered module concurrently and returns
// the joined wait errors.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	return o.each(ctx, o.stop)
}

func (o *Orchestrator) each(ctx context.Context, fn func(context.Context, *module.Module) error) error {
	mods := o.Modules()
	errs := make([]error, 0, len(mods))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, m := range mods {
		m := m
		g.Go(func() error {
			if err := fn(ctx, m); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (o *Orchestrator) start(ctx context.Context, m *module.Module) error {
	logger := log.With(o.logger, log.String("module", m.ID()))

	s, err := o.await(ctx, m, func(s lifecycle.Status) bool {
		if s == lifecycle.StatusUninitialized || s == lifecycle.StatusStopping {
			return false
		}
		// Stopped by an external Stop while OnStarted is still returning.
		return !(lifecycle.CanStart(s) && m.Busy())
	})
	if err != nil {
		logger.Warn("start abandoned", log.Stringer("status", s), log.Err(err))
		return err
	}

	if !lifecycle.CanStart(s) {
		logger.Warn("start skipped, module not startable", log.Stringer("status", s))
		return nil
	}

	m.Start()
	return nil
}

func (o *Orchestrator) stop(ctx context.Context, m *module.Module) error {
	logger := log.With(o.logger, log.String("module", m.ID()))

	s := m.Status()
	switch {
	case s >= lifecycle.StatusStopping:
		logger.Debug("stop skipped, module already stopping", log.Stringer("status", s))
		return nil
	case s < lifecycle.StatusStarting:
		logger.Debug("stop skipped, module never started", log.Stringer("status", s))
		return nil
	}

	s, err := o.await(ctx, m, func(s lifecycle.Status) bool {
		return s != lifecycle.StatusStarting
	})
	if err != nil {
		logger.Warn("stop abandoned", log.Stringer("status", s), log.Err(err))
		return err
	}

	if s != lifecycle.StatusStarted {
		logger.Debug("stop skipped, module stopped on its own", log.Stringer("status", s))
		return nil
	}

	m.Stop()
	return nil
}

// await blocks until cond holds for m, bounded by ctx and WaitTimeout.
func (o *Orchestrator) await(ctx context.Context, m *module.Module, cond func(lifecycle.Status) bool) (lifecycle.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, o.Config().WaitTimeout)
	defer cancel()

	s, err := m.Await(ctx, cond)
	if err != nil {
		return s, fmt.Errorf("%w: module %s in %s: %w", ErrWaitTimeout, m.ID(), s, err)
	}
	return s, nil
}
