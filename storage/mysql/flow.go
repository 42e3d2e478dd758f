package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vaulton/vaulton/internal/util"
	"github.com/vaulton/vaulton/storage"
)

// ============================================================
// AuthRequestStore Implementation
// ============================================================

// SaveAuthorizationRequest inserts a new pending authorization request.
// The primary key on request_id makes a duplicate insert fail with
// storage.ErrDuplicateRequestID instead of overwriting.
func (s *Store) SaveAuthorizationRequest(ctx context.Context, req *storage.AuthorizationRequest) error {
	if req == nil || req.RequestID == "" {
		return fmt.Errorf("invalid authorization request")
	}
	if !req.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("authorization request already expired")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_request (request_id, client_id, redirect_uri, scope, state, code_challenge, code_challenge_method, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.RequestID, req.ClientID, req.RedirectURI, req.Scope, req.State,
		req.CodeChallenge, req.CodeChallengeMethod, req.CreatedAt.UTC(), req.ExpiresAt.UTC())
	if err != nil {
		if isDuplicateEntry(err) {
			return storage.ErrDuplicateRequestID
		}
		return fmt.Errorf("save authorization request: %w", err)
	}

	s.logger.Debug("Saved authorization request",
		"request_id_prefix", util.SafeTruncate(req.RequestID, requestIDLogLength),
		"client_id", req.ClientID)
	return nil
}

// GetAuthorizationRequest retrieves a pending authorization request
// without removing it. Returns storage.ErrRequestNotFound if absent and
// storage.ErrRequestExpired if its validity window has passed.
func (s *Store) GetAuthorizationRequest(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	row := s.db.QueryRowContext(ctx, selectAuthRequest+` WHERE request_id = ?`, requestID)

	req, err := scanAuthRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get authorization request: %w", err)
	}

	if req.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRequestExpired, util.SafeTruncate(requestID, requestIDLogLength))
	}

	return req, nil
}

// ConsumeAuthorizationRequest atomically retrieves and deletes a pending
// authorization request. The row is locked FOR UPDATE inside a
// transaction so only one concurrent consumer of a request ID succeeds;
// a second consume returns storage.ErrRequestNotFound.
func (s *Store) ConsumeAuthorizationRequest(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin consume transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, selectAuthRequest+` WHERE request_id = ? FOR UPDATE`, requestID)

	req, err := scanAuthRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get authorization request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_request WHERE request_id = ?`, requestID); err != nil {
		return nil, fmt.Errorf("delete authorization request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume transaction: %w", err)
	}

	// The row is already gone either way; report expiry so the caller
	// does not act on a stale request.
	if req.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRequestExpired, util.SafeTruncate(requestID, requestIDLogLength))
	}

	s.logger.Debug("Consumed authorization request",
		"request_id_prefix", util.SafeTruncate(requestID, requestIDLogLength))

	return req, nil
}

const selectAuthRequest = `
	SELECT request_id, client_id, redirect_uri, scope, state, code_challenge, code_challenge_method, created_at, expires_at
	FROM auth_request`

func scanAuthRequest(scan func(dest ...any) error) (*storage.AuthorizationRequest, error) {
	var req storage.AuthorizationRequest
	if err := scan(
		&req.RequestID,
		&req.ClientID,
		&req.RedirectURI,
		&req.Scope,
		&req.State,
		&req.CodeChallenge,
		&req.CodeChallengeMethod,
		&req.CreatedAt,
		&req.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
