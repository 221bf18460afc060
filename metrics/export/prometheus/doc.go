// Package prometheus exposes taskAuth engine metrics as a Prometheus
// collector.
//
// [Exporter] implements prometheus.Collector and reads
// [taskAuth.Engine.MetricsSnapshot] on every scrape. Counter names are
// taskauth_*_total; the only histogram is taskauth_resolve_latency_seconds.
// Register it on your own registry or mount [Exporter.Handler].
package prometheus
