// Package telemetry groups the observability packages of the replacer.
//
// # Components
//
//   - logging: structured slog loggers with context fields
//   - metrics: Prometheus collectors for loads, evaluation and apply passes
//   - tracing: OpenTelemetry spans for passes and admin requests
//   - health: liveness and readiness checks with HTTP endpoints
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//
//	m, err := manager.New(manager.Config{Recorder: collector}, source, parser, logger)
//
//	ctx, span := tracer.Start(ctx, tracing.SpanEvaluate)
//	snap := m.Evaluate(ctx)
//	span.SetAttributes(tracing.SnapshotAttributes(snap)...)
//	span.End()
package telemetry
