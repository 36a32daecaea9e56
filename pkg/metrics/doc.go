// Package metrics exports module lifecycle activity as Prometheus metrics.
//
// Observer implements lifecycle.Observer. Attach it to modules with
// module.WithObserver or to every registered module with
// orchestrator.WithObserver:
//
//	obs := metrics.NewObserver()
//	orc, err := orchestrator.New(cfg, orchestrator.WithObserver(obs))
//	http.Handle("/metrics", obs.Handler())
//
// Metrics are kept in a private registry so several observers can live in
// one process.
package metrics
