package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys used across the authorization server
const (
	AttrClientID    = "oauth.client_id"
	AttrRequestID   = "oauth.request_id"
	AttrScope       = "oauth.scope"
	AttrErrorCode   = "oauth.error_code"
	AttrRedirectURI = "oauth.redirect_uri"
	AttrStorageOp   = "storage.operation"
	AttrHTTPMethod  = "http.method"
	AttrHTTPPath    = "http.path"
	AttrHTTPStatus  = "http.status_code"
)

// RecordError records an error on the span and sets error status.
// Safe to call with a nil span or nil error.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks the span as successful.
// Safe to call with a nil span.
func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SetSpanError marks the span as failed with the given message.
// Safe to call with a nil span.
func SetSpanError(span trace.Span, message string) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Error, message)
}

// SetSpanAttributes sets attributes on the span.
// Safe to call with a nil span.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
