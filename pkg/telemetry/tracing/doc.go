// Package tracing provides OpenTelemetry tracing for the replacer.
//
// The run command opens a span for every evaluation, apply and directory
// load pass, and the admin server opens a server span per request after
// extracting W3C trace context from the incoming headers. Spans carry the
// rule version, snapshot id and generation, and the number of subjects
// assigned or changed.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    exporter: otlp        # or stdout
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// When tracing is disabled New returns a tracer backed by a no-op provider,
// so callers never need to check whether tracing is on.
package tracing
