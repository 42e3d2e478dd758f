package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaulton/vaulton/storage"
)

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client. The primary key on client_id
// makes duplicate registration fail with storage.ErrDuplicateClientID.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("marshal redirect URIs: %w", err)
	}
	scopes, err := json.Marshal(client.Scopes)
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_client (client_id, client_secret_hash, client_type, client_name, redirect_uris, scopes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, client.ClientID, client.ClientSecretHash, client.ClientType, client.ClientName,
		redirectURIs, scopes, client.CreatedAt.UTC())
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateClientID, client.ClientID)
		}
		return fmt.Errorf("save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID. Returns storage.ErrClientNotFound
// if the client is not registered.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT client_id, client_secret_hash, client_type, client_name, redirect_uris, scopes, created_at
		FROM oauth_client
		WHERE client_id = ?
	`, clientID)

	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	return client, nil
}

func scanClient(row *sql.Row) (*storage.Client, error) {
	var (
		client       storage.Client
		redirectURIs []byte
		scopes       []byte
	)

	if err := row.Scan(
		&client.ClientID,
		&client.ClientSecretHash,
		&client.ClientType,
		&client.ClientName,
		&redirectURIs,
		&scopes,
		&client.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(redirectURIs, &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("unmarshal redirect URIs: %w", err)
	}
	if err := json.Unmarshal(scopes, &client.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshal scopes: %w", err)
	}

	return &client, nil
}
