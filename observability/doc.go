// Package observability provides an OpenTelemetry metrics extension for
// volshift. The MetricsExtension implements lifecycle hooks to record
// counters for initiated stages, redeemed tokens, correlation misses,
// attach retries, started runs and DLQ entries.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
