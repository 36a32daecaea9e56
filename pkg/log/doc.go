// Package log provides a logging abstraction for modkit components.
//
// The Logger interface can be backed by any logging library. A zerolog
// adapter and a no-op logger are provided; every modkit package defaults
// to the no-op logger so the library stays silent unless configured.
//
// # Usage
//
//	logger, err := log.NewZerologAdapterFor(os.Stderr, "debug", "json")
//	orc, err := orchestrator.New(cfg, orchestrator.WithLogger(logger))
//
// config.Config.NewLogger builds the same adapter from LogLevel and
// LogFormat.
//
// # Custom Loggers
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
