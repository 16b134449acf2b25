// Package metrics exports Prometheus metrics for the coordination
// components. A single Collector implements every component's observer
// interface and registers on a caller-supplied registry.
package metrics
