package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vaulton/vaulton/internal/util"
	"github.com/vaulton/vaulton/storage"
)

const (
	// requestIDLength is the length of generated request identifiers
	requestIDLength = 32

	// requestIDAlphabet is the character set for request identifiers
	requestIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// maxRequestIDAttempts bounds retries when an identifier collides
	maxRequestIDAttempts = 3
)

// AuthorizeResult describes the outcome of an authorization request.
// Exactly one of the two shapes applies:
//
//   - Success: AuthError is nil and RedirectURL points at the login page
//     with the request_id parameter appended.
//   - Failure: AuthError is set. When RedirectURL is non-empty the error
//     is delivered to the client's registered redirect URI; when empty the
//     error must be rendered directly to the user agent, because no
//     trustworthy redirect target exists.
type AuthorizeResult struct {
	RedirectURL string
	RequestID   string
	AuthError   *OAuthError
}

// Authorize validates an authorization request and, on success, stores a
// pending authorization and returns the login redirect. Validation
// failures are mapped to OAuth error codes; they are redirected back to
// the client only when the client was resolved and presented a registered
// redirect URI.
func (s *Server) Authorize(ctx context.Context, req *AuthorizationRequest, clientIP string) (*AuthorizeResult, error) {
	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		// Backend failures collapse to unknown client: the directory could
		// not vouch for the client, so its redirect URI is untrusted, and
		// the earlier validation rules must still take precedence.
		if !errors.Is(err, storage.ErrClientNotFound) {
			s.Logger.Error("Client lookup failed", "error", err, "client_id", req.ClientID)
		}
		client = nil
	}

	validated, authErr := ValidateAuthorizationRequest(req, client)
	if authErr != nil {
		return s.failAuthorize(ctx, req, client, authErr, clientIP), nil
	}

	if err := s.validateServerScopes(validated.Scopes); err != nil {
		return s.failAuthorize(ctx, req, client, ErrInvalidScope(err.Error()), clientIP), nil
	}

	pending, err := s.savePendingAuthorization(ctx, req, validated)
	if err != nil {
		s.Logger.Error("Failed to store pending authorization",
			"error", err,
			"client_id", req.ClientID)
		return s.failAuthorize(ctx, req, client, ErrServerError("failed to store authorization request"), clientIP), nil
	}

	if s.Auditor != nil {
		s.Auditor.LogAuthorizationStarted(req.ClientID, clientIP, pending.RequestID, req.Scope)
	}
	if s.metrics != nil {
		s.metrics.RecordAuthorizationAccepted(ctx, req.ClientID)
		s.metrics.RecordAuthorizationStarted(ctx, req.ClientID)
	}

	loginURL, err := s.loginRedirectURL(pending.RequestID)
	if err != nil {
		return nil, fmt.Errorf("invalid login URL configured: %w", err)
	}

	return &AuthorizeResult{
		RedirectURL: loginURL,
		RequestID:   pending.RequestID,
	}, nil
}

// failAuthorize builds the failure result for a rejected authorization
// request and records audit and metric events. The error is delivered via
// redirect only when the client exists, the presented redirect URI is
// registered for it, and the error code belongs to the RFC 6749 redirect
// taxonomy. Anything else would be an open redirect.
func (s *Server) failAuthorize(ctx context.Context, req *AuthorizationRequest, client *storage.Client, authErr *OAuthError, clientIP string) *AuthorizeResult {
	if s.Auditor != nil {
		s.Auditor.LogAuthorizationRejected(req.ClientID, clientIP, authErr.Code, authErr.Description)
	}
	if s.metrics != nil {
		s.metrics.RecordAuthorizationRejected(ctx, authErr.Code)
	}

	result := &AuthorizeResult{AuthError: authErr}

	if client == nil || !client.HasRedirectURI(req.RedirectURI) || !authErr.Redirectable() {
		return result
	}

	redirectURL, err := authErr.RedirectURL(req.RedirectURI, req.State)
	if err != nil {
		s.Logger.Warn("Failed to build error redirect",
			"error", err,
			"client_id", req.ClientID)
		return result
	}

	result.RedirectURL = redirectURL
	return result
}

// savePendingAuthorization generates a request identifier and stores the
// pending authorization. The stored scope is the effective scope set from
// validation, so an absent scope parameter persists as "openid".
// Identifier collisions are vanishingly rare but the store enforces
// uniqueness, so generation is retried a bounded number of times.
func (s *Server) savePendingAuthorization(ctx context.Context, req *AuthorizationRequest, validated *ValidatedRequest) (*storage.AuthorizationRequest, error) {
	now := time.Now()
	ttl := time.Duration(s.Config.AuthRequestTTL) * time.Second

	for attempt := 0; attempt < maxRequestIDAttempts; attempt++ {
		requestID, err := generateRequestID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate request id: %w", err)
		}

		pending := &storage.AuthorizationRequest{
			RequestID:           requestID,
			ClientID:            req.ClientID,
			RedirectURI:         req.RedirectURI,
			Scope:               strings.Join(validated.Scopes, " "),
			State:               req.State,
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
			CreatedAt:           now,
			ExpiresAt:           now.Add(ttl),
		}

		err = s.authRequestStore.SaveAuthorizationRequest(ctx, pending)
		if err == nil {
			return pending, nil
		}
		if !errors.Is(err, storage.ErrDuplicateRequestID) {
			return nil, err
		}

		s.Logger.Warn("Request identifier collision, regenerating",
			"attempt", attempt+1,
			"request_id_prefix", util.SafeTruncate(requestID, 8))
	}

	return nil, fmt.Errorf("exhausted %d attempts to generate a unique request id", maxRequestIDAttempts)
}

// loginRedirectURL appends the request_id parameter to the configured
// login URL, preserving any query parameters already present.
func (s *Server) loginRedirectURL(requestID string) (string, error) {
	target, err := url.Parse(s.Config.LoginURL)
	if err != nil {
		return "", err
	}

	q := target.Query()
	q.Set("request_id", requestID)
	target.RawQuery = q.Encode()

	return target.String(), nil
}

// GetPendingAuthorization returns a pending authorization without
// consuming it. Used by the login page to display request details.
func (s *Server) GetPendingAuthorization(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	return s.authRequestStore.GetAuthorizationRequest(ctx, requestID)
}

// ConsumePendingAuthorization atomically retrieves and deletes a pending
// authorization. Exactly one caller observes a given request; subsequent
// calls fail with storage.ErrRequestNotFound.
func (s *Server) ConsumePendingAuthorization(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	pending, err := s.authRequestStore.ConsumeAuthorizationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if s.Auditor != nil {
		s.Auditor.LogAuthorizationConsumed(pending.ClientID, pending.RequestID)
	}
	if s.metrics != nil {
		s.metrics.RecordAuthorizationConsumed(ctx, pending.ClientID)
	}

	return pending, nil
}

// generateRequestID produces a cryptographically random identifier of
// requestIDLength characters drawn uniformly from requestIDAlphabet.
// Rejection sampling keeps the distribution unbiased.
func generateRequestID() (string, error) {
	const alphabetLen = byte(len(requestIDAlphabet))
	// Largest multiple of the alphabet size below 256; bytes at or above
	// it are rejected to avoid modulo bias.
	const limit = 256 - (256 % len(requestIDAlphabet))

	id := make([]byte, 0, requestIDLength)
	buf := make([]byte, requestIDLength*2)

	for len(id) < requestIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			id = append(id, requestIDAlphabet[b%alphabetLen])
			if len(id) == requestIDLength {
				break
			}
		}
	}

	return string(id), nil
}
