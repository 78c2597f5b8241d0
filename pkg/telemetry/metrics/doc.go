// Package metrics provides Prometheus metrics collection for the replacer
// runtime.
//
// # Metrics Categories
//
//   - Rule Metrics: load outcomes, active rule count and rules per group
//   - Evaluation Metrics: pass duration, subject count and assigned count
//   - Apply Metrics: pass duration and applied subject count
//   - Reload Metrics: watcher changes and directory rescans
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	// The collector satisfies manager.Recorder.
//	mgr, err := manager.New(manager.Config{Recorder: collector}, source, parser, logger)
//
//	http.Handle("/metrics", collector.Handler())
//
// A collector built from a disabled configuration registers its metrics
// but records nothing.
package metrics
