// Package instrumentation provides OpenTelemetry metrics and tracing for the
// authorization server. When disabled, all instruments are backed by no-op
// providers so the hot path carries no measurable overhead.
package instrumentation
