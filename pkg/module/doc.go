// Package module drives a single lifecycle.Lifecycle through its states.
//
// New runs OnInstanced synchronously and leaves the module Instanced.
// Start moves it to Starting and hands the run body to an Executor; the
// body calls OnStarted, promotes the module to Started and stops it once
// the hook returns. Stop runs OnStopped on the caller's goroutine.
//
// # Promotion to Started
//
// OnStarted always begins in Starting. A long-running hook calls Ready
// once it is serving:
//
//	func (s *Server) OnStarted(ctx context.Context) error {
//	    ln, err := s.listen()
//	    if err != nil {
//	        return err
//	    }
//	    module.Ready(ctx)
//	    return s.serve(ln)
//	}
//
// A hook that returns without calling Ready is promoted by the driver
// right before the automatic stop, so every run drains to Stopped.
//
// # Waiting
//
// Status is an atomic value readable from any goroutine. Await blocks
// until a predicate holds, woken by every transition rather than by
// polling.
//
// The context passed to OnStarted is never cancelled by Stop. A hook that
// blocks must be released by its own OnStopped.
package module
