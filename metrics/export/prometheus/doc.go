// Package prometheus exposes careAuth metrics through client_golang.
//
// [PrometheusExporter] implements [prometheus.Collector]: every scrape reads
// [careAuth.Engine.MetricsSnapshot] and emits const metrics named
// careauth_*_total plus the careauth_authenticate_latency_seconds histogram.
//
// # What this package must NOT do
//
//   - Register itself in the global Prometheus registry. Callers choose.
//   - Mutate engine state.
package prometheus
