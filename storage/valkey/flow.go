package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vaulton/vaulton/internal/util"
	"github.com/vaulton/vaulton/storage"
)

// ============================================================
// AuthRequestStore Implementation
// ============================================================

// SaveAuthorizationRequest inserts a new pending authorization request.
// The write uses SET NX with a TTL derived from the request expiry, so
// an existing request ID is never overwritten and Valkey reclaims
// expired entries on its own. Returns storage.ErrDuplicateRequestID if
// the ID is already present.
func (s *Store) SaveAuthorizationRequest(ctx context.Context, req *storage.AuthorizationRequest) error {
	if req == nil || req.RequestID == "" {
		return fmt.Errorf("invalid authorization request")
	}

	data, err := json.Marshal(toAuthorizationRequestJSON(req))
	if err != nil {
		return fmt.Errorf("failed to marshal authorization request: %w", err)
	}

	ttl := calculateTTL(req.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization request already expired")
	}

	key := s.authRequestKey(req.RequestID)

	// SET NX returns a nil reply when the key already exists
	err = s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Nx().Ex(ttl).Build(),
	).Error()
	if err != nil {
		if isNilError(err) {
			return storage.ErrDuplicateRequestID
		}
		return fmt.Errorf("failed to save authorization request: %w", err)
	}

	s.logger.Debug("Saved authorization request",
		"request_id_prefix", util.SafeTruncate(req.RequestID, requestIDLogLength),
		"client_id", req.ClientID)
	return nil
}

// GetAuthorizationRequest retrieves a pending authorization request
// without removing it. Returns storage.ErrRequestNotFound if absent and
// storage.ErrRequestExpired if it has outlived its validity window.
func (s *Store) GetAuthorizationRequest(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	key := s.authRequestKey(requestID)

	req, err := getAndUnmarshal(ctx, s, key, storage.ErrRequestNotFound, fromAuthorizationRequestJSON)
	if err != nil {
		return nil, err
	}

	// TTL should handle this, but double-check for safety
	if req.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRequestExpired, util.SafeTruncate(requestID, requestIDLogLength))
	}

	return req, nil
}

// ConsumeAuthorizationRequest atomically retrieves and deletes a pending
// authorization request via a Lua script, so a request ID cannot be
// replayed. A second consume of the same ID returns
// storage.ErrRequestNotFound.
func (s *Store) ConsumeAuthorizationRequest(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	key := s.authRequestKey(requestID)

	result, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaGetAndDelete).
			Numkeys(1).
			Key(key).
			Build(),
	).ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic consume: %w", err)
	}

	if result == "NOT_FOUND" {
		return nil, storage.ErrRequestNotFound
	}

	var j authorizationRequestJSON
	if err := json.Unmarshal([]byte(result), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization request: %w", err)
	}

	req := fromAuthorizationRequestJSON(&j)

	// The entry is already gone either way; report expiry so the caller
	// does not act on a stale request that outlived its TTL by clock skew.
	if req.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRequestExpired, util.SafeTruncate(requestID, requestIDLogLength))
	}

	s.logger.Debug("Consumed authorization request",
		"request_id_prefix", util.SafeTruncate(requestID, requestIDLogLength))

	return req, nil
}
