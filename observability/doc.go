// Package observability provides an OpenTelemetry-based metrics
// extension for chatflow. The MetricsExtension implements lifecycle
// hooks to record system-wide counters for conversation starts,
// progressions, completions, abandonments, and ignored messages.
//
// For per-message tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
