package vaulton

import "github.com/vaulton/vaulton/server"

// OAuthError represents an OAuth 2.0 authorization error response.
// It is defined in the server package; the alias keeps the public API
// surface in one place.
type OAuthError = server.OAuthError

// OAuth error codes (RFC 6749 Section 4.1.2.1)
const (
	ErrorCodeInvalidRequest          = server.ErrorCodeInvalidRequest
	ErrorCodeUnauthorizedClient      = server.ErrorCodeUnauthorizedClient
	ErrorCodeAccessDenied            = server.ErrorCodeAccessDenied
	ErrorCodeUnsupportedResponseType = server.ErrorCodeUnsupportedResponseType
	ErrorCodeInvalidScope            = server.ErrorCodeInvalidScope
	ErrorCodeServerError             = server.ErrorCodeServerError
	ErrorCodeTemporarilyUnavailable  = server.ErrorCodeTemporarilyUnavailable
	ErrorCodeInvalidClient           = server.ErrorCodeInvalidClient
)

// Error constructors re-exported from the server package
var (
	NewOAuthError              = server.NewOAuthError
	ErrInvalidRequest          = server.ErrInvalidRequest
	ErrUnauthorizedClient      = server.ErrUnauthorizedClient
	ErrAccessDenied            = server.ErrAccessDenied
	ErrUnsupportedResponseType = server.ErrUnsupportedResponseType
	ErrInvalidScope            = server.ErrInvalidScope
	ErrServerError             = server.ErrServerError
	ErrTemporarilyUnavailable  = server.ErrTemporarilyUnavailable
	ErrInvalidClient           = server.ErrInvalidClient
)
