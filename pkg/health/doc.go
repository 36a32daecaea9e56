// Package health exposes module status as liveness and readiness checks.
//
// The checks plug into github.com/heptiolabs/healthcheck:
//
//	h := health.NewHandler(orc,
//	    health.WithReady("*event.Dispatcher", "api"),
//	    health.WithStoppingThreshold(30*time.Second),
//	)
//	http.Handle("/", h) // serves /live and /ready
//
// Readiness fails until the named modules are Started. Liveness fails
// when a module has been stuck in Stopping, which happens when OnStopped
// returned an error, for longer than the threshold.
package health
