// Package metrics exposes presence engine counters to Prometheus.
//
// Collector registers everything on a private registry (no global state)
// together with the Go runtime and process collectors, and serves it via
// Handler. It plugs into the engine as both a transition observer and the
// engine Recorder.
package metrics
