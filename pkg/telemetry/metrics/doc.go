// Package metrics exposes Prometheus instrumentation for the decision
// core: decision outcomes and latency, rule toggles, receipt writes,
// signature verification results, and per-unit load gauges.
package metrics
