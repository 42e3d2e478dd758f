package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the authorization server
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Authorization flow metrics
	AuthorizationStarted  metric.Int64Counter
	AuthorizationAccepted metric.Int64Counter
	AuthorizationRejected metric.Int64Counter
	AuthorizationConsumed metric.Int64Counter

	// Client registration metrics
	ClientRegistered metric.Int64Counter

	// Security metrics
	RateLimitExceeded metric.Int64Counter

	// Storage metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageClientsCount      metric.Int64ObservableGauge
	StorageAuthRequestsCount metric.Int64ObservableGauge
}

// newMetrics creates all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	meter := inst.Meter("metrics")
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_milliseconds: %w", err)
	}

	m.AuthorizationStarted, err = meter.Int64Counter(
		"authorization_started_total",
		metric.WithDescription("Total number of authorization requests accepted for login"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization_started_total: %w", err)
	}

	m.AuthorizationAccepted, err = meter.Int64Counter(
		"authorization_accepted_total",
		metric.WithDescription("Total number of authorization requests that passed validation"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization_accepted_total: %w", err)
	}

	m.AuthorizationRejected, err = meter.Int64Counter(
		"authorization_rejected_total",
		metric.WithDescription("Total number of authorization requests rejected by validation"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization_rejected_total: %w", err)
	}

	m.AuthorizationConsumed, err = meter.Int64Counter(
		"authorization_consumed_total",
		metric.WithDescription("Total number of pending authorizations consumed after login"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization_consumed_total: %w", err)
	}

	m.ClientRegistered, err = meter.Int64Counter(
		"client_registered_total",
		metric.WithDescription("Total number of registered OAuth clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client_registered_total: %w", err)
	}

	m.RateLimitExceeded, err = meter.Int64Counter(
		"rate_limit_exceeded_total",
		metric.WithDescription("Total number of rate limited requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_exceeded_total: %w", err)
	}

	m.StorageOperationTotal, err = meter.Int64Counter(
		"storage_operation_total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage_operation_total: %w", err)
	}

	m.StorageOperationDuration, err = meter.Float64Histogram(
		"storage_operation_duration_milliseconds",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage_operation_duration_milliseconds: %w", err)
	}

	m.StorageClientsCount, err = meter.Int64ObservableGauge(
		"storage_clients_count",
		metric.WithDescription("Current number of stored OAuth clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage_clients_count: %w", err)
	}

	m.StorageAuthRequestsCount, err = meter.Int64ObservableGauge(
		"storage_auth_requests_count",
		metric.WithDescription("Current number of pending authorization requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage_auth_requests_count: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, durationMs, attrs)
}

// RecordAuthorizationStarted records an authorization request entering the login step
func (m *Metrics) RecordAuthorizationStarted(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.AuthorizationStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordAuthorizationAccepted records a request that passed validation
func (m *Metrics) RecordAuthorizationAccepted(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.AuthorizationAccepted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordAuthorizationRejected records a validation failure with its error code
func (m *Metrics) RecordAuthorizationRejected(ctx context.Context, errorCode string) {
	if m == nil {
		return
	}
	m.AuthorizationRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_code", errorCode),
	))
}

// RecordAuthorizationConsumed records a pending authorization consumed after login
func (m *Metrics) RecordAuthorizationConsumed(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.AuthorizationConsumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordClientRegistered records a client registration
func (m *Metrics) RecordClientRegistered(ctx context.Context, clientType string) {
	if m == nil {
		return
	}
	m.ClientRegistered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_type", clientType),
	))
}

// RecordRateLimitExceeded records a rate limited request
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordStorageOperation records a storage operation with its result and duration
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	)
	m.StorageOperationTotal.Add(ctx, 1, attrs)
	m.StorageOperationDuration.Record(ctx, durationMs, attrs)
}
