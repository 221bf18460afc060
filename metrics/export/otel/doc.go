// Package otel publishes taskAuth engine metrics through an OpenTelemetry
// meter.
//
// Related engine counters share one Int64ObservableCounter and are told
// apart by an outcome or operation attribute, e.g. taskauth.sign_in with
// outcome=success|failure. Resolve latency is reported as cumulative gauges
// keyed by an le attribute plus a count gauge. The caller owns the
// MeterProvider.
package otel
