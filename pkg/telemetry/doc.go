// Package telemetry groups the observability packages for Tollbooth.
//
// # Components
//
//   - logging: structured slog configuration
//   - metrics: Prometheus instrumentation for decisions, receipts, and
//     per-unit load
//
// Components receive their logger and collector explicitly; there is no
// global telemetry state beyond the process default logger.
package telemetry
