// Package middleware provides observability middleware for the hotbridge
// dev server: Prometheus metrics and OpenTelemetry tracing around bridged
// requests, plus counters for handler reload outcomes.
package middleware
