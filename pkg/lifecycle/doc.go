// Package lifecycle defines the module state machine.
//
// A module moves through six ordered states:
//
//	Uninitialized -> Instanced -> Starting -> Started -> Stopping -> Stopped
//
// and may re-enter the cycle through Stopped -> Starting. The order is part
// of the contract: callers compare statuses with < and >= to ask whether a
// module has progressed far enough or is already winding down.
//
// This package holds the rules only. It never mutates a status; the
// module driver in package module owns the status field and consults
// CanStart, CanRun, CanStop and ValidTransition before every write.
//
// # Hooks
//
// Module implementations satisfy [Lifecycle], usually by embedding [Base]
// and overriding the hooks they need:
//
//	type Crawler struct {
//	    lifecycle.Base
//	}
//
//	func (c *Crawler) OnStarted(ctx context.Context) error {
//	    module.Ready(ctx)
//	    return c.crawl()
//	}
//
// Valid transitions:
//   - Uninitialized -> Instanced
//   - Instanced -> Starting
//   - Starting -> Started
//   - Started -> Stopping
//   - Stopping -> Stopped
//   - Stopped -> Starting
package lifecycle
