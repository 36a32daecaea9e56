// Package orchestrator keeps a registry of modules and starts and stops
// them safely.
//
// A module may be mid-transition when asked to start or stop, so the
// orchestrator first waits for a state it can act on, bounded by the
// configured WaitTimeout and the caller's context:
//
//   - Start waits while the module is Uninitialized, Stopping, or Stopped
//     with its previous run still draining, then starts it if it is
//     Instanced or Stopped. Any other state is logged and left alone.
//   - Stop ignores modules that are already Stopping or Stopped, or that
//     never started, waits while the module is Starting, then stops it.
//
// Run bodies execute on a shared worker pool sized to the number of
// registered modules. Construct modules with the orchestrator's executor
// and logger, or let Register do it:
//
//	orc, err := orchestrator.New(config.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer orc.Close(ctx)
//
//	if _, err := orc.Register(&Server{}); err != nil {
//	    return err
//	}
//	if err := orc.StartAll(ctx); err != nil {
//	    return err
//	}
//
// RegisterBus adds an event dispatcher sized from the configuration that
// already applies ConfigChanged events to the orchestrator.
package orchestrator
