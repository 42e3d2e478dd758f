// Package storage defines interfaces for persisting OAuth clients and
// pending authorization requests. It supports multiple backend
// implementations including in-memory, Valkey, and MySQL.
package storage

import (
	"context"
	"errors"
	"time"
)

// Storage errors returned by all backend implementations. Callers should
// compare with errors.Is since backends may wrap them with context.
var (
	// ErrClientNotFound is returned when a client ID is not registered.
	ErrClientNotFound = errors.New("client not found")

	// ErrRequestNotFound is returned when an authorization request ID does not exist.
	ErrRequestNotFound = errors.New("authorization request not found")

	// ErrRequestExpired is returned when an authorization request exists but its
	// validity window has passed. Expired requests are unusable and are treated
	// as absent by the authorization flow.
	ErrRequestExpired = errors.New("authorization request expired")

	// ErrDuplicateRequestID is returned when saving an authorization request whose
	// request ID is already present. Inserts never overwrite an existing entry.
	ErrDuplicateRequestID = errors.New("authorization request ID already exists")

	// ErrDuplicateClientID is returned when registering a client whose ID is taken.
	ErrDuplicateClientID = errors.New("client ID already exists")
)

// ClientStore defines the interface for the client directory.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client. Fails with ErrDuplicateClientID
	// if the client ID is already registered.
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID. Returns ErrClientNotFound if the
	// client is not registered.
	GetClient(ctx context.Context, clientID string) (*Client, error)
}

// AuthRequestStore defines the interface for pending authorization requests.
//
// A pending authorization request is created by the authorization endpoint
// after a request has been validated, and is looked up by the login
// continuation step using the opaque request ID. Request IDs are generated
// with enough entropy that collisions are not expected, but SaveAuthorizationRequest
// must still enforce uniqueness at insert time rather than assume it.
//
// All methods accept context.Context for tracing and cancellation.
type AuthRequestStore interface {
	// SaveAuthorizationRequest inserts a new pending authorization request keyed
	// by its RequestID. Returns ErrDuplicateRequestID if the ID is already
	// present; it never overwrites an existing entry. The insert is atomic per
	// key: a concurrent reader observes either the complete record or nothing.
	SaveAuthorizationRequest(ctx context.Context, req *AuthorizationRequest) error

	// GetAuthorizationRequest retrieves a pending request without removing it.
	// Returns ErrRequestNotFound if absent and ErrRequestExpired if the request
	// has outlived its validity window.
	GetAuthorizationRequest(ctx context.Context, requestID string) (*AuthorizationRequest, error)

	// ConsumeAuthorizationRequest atomically retrieves and deletes a pending
	// request. The login step uses this so a request ID cannot be replayed.
	// Returns the same errors as GetAuthorizationRequest; a second consume of
	// the same ID returns ErrRequestNotFound.
	ConsumeAuthorizationRequest(ctx context.Context, requestID string) (*AuthorizationRequest, error)
}

// Client represents a registered OAuth client.
//
// RedirectURIs and Scopes carry exact-match semantics only: a presented
// redirect URI or scope is valid iff it appears verbatim in the respective
// set. There is no wildcard or prefix matching.
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash, empty for public clients
	ClientType       string // "public" or "confidential"
	ClientName       string
	RedirectURIs     []string
	Scopes           []string
	CreatedAt        time.Time
}

// HasRedirectURI reports whether uri is registered for the client, by
// verbatim string comparison.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsScopes reports whether every requested scope appears verbatim in
// the client's allowed scope set.
func (c *Client) AllowsScopes(requested []string) bool {
	for _, scope := range requested {
		found := false
		for _, allowed := range c.Scopes {
			if scope == allowed {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AuthorizationRequest represents one authorization attempt awaiting user
// authentication and consent.
//
// The stored RedirectURI is the one the client presented and that was
// validated against the client's registered set; the login step must use
// it as-is and never re-derive it. State, CodeChallenge, and
// CodeChallengeMethod pass through verbatim from the inbound request.
type AuthorizationRequest struct {
	RequestID           string // opaque 32-character alphanumeric identifier
	ClientID            string
	RedirectURI         string
	Scope               string // space-joined, always contains "openid"
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// Expired reports whether the request's validity window has passed at now.
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
