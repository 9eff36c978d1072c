// Package observability carries per-request transcription metrics and the
// OpenTelemetry wiring that exports them.
//
// Recorder computes the RequestMetrics returned to clients. Metrics holds
// the OTel instruments the pipeline records into. Telemetry owns the meter
// and tracer providers and is registered as a lifecycle component so they
// are flushed on shutdown.
package observability
