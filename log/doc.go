// Package log provides the leveled logging interface used by the crag pipeline.
//
// Loggers are backed by kataras/golog. The package keeps a process-wide
// default logger so that graph nodes and adapters can log without having a
// logger threaded through every call.
//
// # Log Levels
//
//   - LogLevelDebug: per-document grading decisions, cache hits and misses
//   - LogLevelInfo: node transitions and routing decisions
//   - LogLevelWarn: recoverable problems such as a failed page during ingestion
//   - LogLevelError: failures that abort a run
//   - LogLevelNone: disables all logging output
//
// # Example Usage
//
//	logger := log.NewDefaultLogger(log.LogLevelDebug)
//	logger.Info("route: %s", route)
//
//	// Or configure the package-level logger once
//	log.SetLogLevel(log.LogLevelWarn)
//	log.Warn("skipping %s: %v", url, err)
//
// Wrap an existing golog instance with NewGologLogger to share its output
// and formatting with the rest of an application.
package log
