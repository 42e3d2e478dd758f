package server

import (
	"fmt"
	"net/http"
	"net/url"
)

// OAuth error codes as constants (RFC 6749 Section 4.1.2.1)
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeServerError             = "server_error"
	ErrorCodeTemporarilyUnavailable  = "temporarily_unavailable"

	// ErrorCodeInvalidClient is not part of the RFC 6749 authorization
	// endpoint error taxonomy and is never delivered via redirect.
	ErrorCodeInvalidClient = "invalid_client"
)

// OAuthError represents an OAuth 2.0 authorization error response.
// The error code is fixed at construction; delivery (redirect versus
// direct response) is decided separately by the caller.
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_scope")
	Description string // Human-readable error description
	Status      int    // HTTP status code for non-redirect delivery
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Redirectable reports whether this error may be delivered to the client
// via redirect. Only the RFC 6749 authorization endpoint error codes
// qualify; invalid_client must never leave the server as a redirect
// because the requesting client was never authenticated.
func (e *OAuthError) Redirectable() bool {
	switch e.Code {
	case ErrorCodeInvalidRequest,
		ErrorCodeUnauthorizedClient,
		ErrorCodeAccessDenied,
		ErrorCodeUnsupportedResponseType,
		ErrorCodeInvalidScope,
		ErrorCodeServerError,
		ErrorCodeTemporarilyUnavailable:
		return true
	}
	return false
}

// RedirectURL builds the error redirect for the given registered redirect
// URI, preserving any query parameters already present on it. The state
// parameter is echoed back verbatim when non-empty.
func (e *OAuthError) RedirectURL(redirectURI, state string) (string, error) {
	if !e.Redirectable() {
		return "", fmt.Errorf("error code %s cannot be delivered via redirect", e.Code)
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}

	q := target.Query()
	q.Set("error", e.Code)
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()

	return target.String(), nil
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common OAuth errors as reusable constructors
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrUnauthorizedClient indicates the client is not authorized to use this flow
	ErrUnauthorizedClient = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeUnauthorizedClient, desc, http.StatusBadRequest)
	}

	// ErrAccessDenied indicates the user or authorization server denied the request
	ErrAccessDenied = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeAccessDenied, desc, http.StatusForbidden)
	}

	// ErrUnsupportedResponseType indicates a response_type other than "code"
	ErrUnsupportedResponseType = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeUnsupportedResponseType, desc, http.StatusBadRequest)
	}

	// ErrInvalidScope indicates the requested scope is invalid or unsupported
	ErrInvalidScope = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrTemporarilyUnavailable indicates the server is overloaded or under maintenance
	ErrTemporarilyUnavailable = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeTemporarilyUnavailable, desc, http.StatusServiceUnavailable)
	}

	// ErrInvalidClient indicates the client is unknown; never redirected
	ErrInvalidClient = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}
)
