package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vaulton/vaulton/storage"
)

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client. The write uses SET NX so an
// existing client ID is never overwritten; a duplicate registration
// returns storage.ErrDuplicateClientID.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	data, err := json.Marshal(toClientJSON(client))
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	key := s.clientKey(client.ClientID)

	// SET NX returns a nil reply when the key already exists
	err = s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Nx().Build(),
	).Error()
	if err != nil {
		if isNilError(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateClientID, client.ClientID)
		}
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID. Returns storage.ErrClientNotFound
// if the client is not registered.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	key := s.clientKey(clientID)
	return getAndUnmarshal(ctx, s, key, storage.ErrClientNotFound, fromClientJSON)
}
