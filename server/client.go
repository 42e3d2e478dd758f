package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaulton/vaulton/storage"
)

// Client type constants
const (
	// ClientTypeConfidential represents a confidential OAuth client
	ClientTypeConfidential = "confidential"

	// ClientTypePublic represents a public OAuth client
	ClientTypePublic = "public"
)

// RegisterClient registers a new OAuth client with IP-based DoS protection.
// Confidential clients receive a generated secret which is returned exactly
// once; only its bcrypt hash is stored. Public clients get no secret and
// rely on PKCE.
func (s *Server) RegisterClient(ctx context.Context, clientName, clientType string, redirectURIs, scopes []string, clientIP string) (*storage.Client, string, error) {
	if err := s.checkIPRegistrationLimit(clientIP); err != nil {
		return nil, "", err
	}

	if len(redirectURIs) == 0 {
		return nil, "", fmt.Errorf("at least one redirect_uri is required")
	}
	for _, uri := range redirectURIs {
		if err := validateRedirectURIFormat(uri); err != nil {
			s.Logger.Warn("Client registration rejected: redirect URI validation failed",
				"error", err.Error(),
				"client_ip", clientIP)
			return nil, "", fmt.Errorf("invalid redirect_uri: %w", err)
		}
	}

	if clientType == "" {
		clientType = ClientTypeConfidential
	}
	if clientType != ClientTypeConfidential && clientType != ClientTypePublic {
		return nil, "", fmt.Errorf("invalid client type: %s", clientType)
	}

	clientID := uuid.NewString()
	clientSecret, clientSecretHash, err := generateClientSecret(clientType)
	if err != nil {
		return nil, "", err
	}

	client := &storage.Client{
		ClientID:         clientID,
		ClientSecretHash: clientSecretHash,
		ClientType:       clientType,
		ClientName:       clientName,
		RedirectURIs:     redirectURIs,
		Scopes:           scopes,
		CreatedAt:        time.Now(),
	}

	if err := s.clientStore.SaveClient(ctx, client); err != nil {
		return nil, "", fmt.Errorf("failed to save client: %w", err)
	}

	s.trackClientIP(clientIP)

	if s.Auditor != nil {
		s.Auditor.LogClientRegistered(client.ClientID, client.ClientType, clientIP)
	}
	if s.metrics != nil {
		s.metrics.RecordClientRegistered(ctx, client.ClientType)
	}

	s.Logger.Info("Registered new OAuth client",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
		"client_type", client.ClientType,
		"client_ip", clientIP)

	return client, clientSecret, nil
}

// checkIPRegistrationLimit enforces the per-IP registration cap
func (s *Server) checkIPRegistrationLimit(clientIP string) error {
	if clientIP == "" || s.Config.MaxClientsPerIP <= 0 {
		return nil
	}

	s.clientsPerIPMu.Lock()
	defer s.clientsPerIPMu.Unlock()

	if s.clientsPerIP[clientIP] >= s.Config.MaxClientsPerIP {
		return fmt.Errorf("client registration limit reached for this IP")
	}
	return nil
}

// trackClientIP records a successful registration against the IP cap
func (s *Server) trackClientIP(clientIP string) {
	if clientIP == "" {
		return
	}

	s.clientsPerIPMu.Lock()
	defer s.clientsPerIPMu.Unlock()
	s.clientsPerIP[clientIP]++
}

// generateClientSecret generates a secret for confidential clients.
// Public clients authenticate with PKCE only and get no secret.
func generateClientSecret(clientType string) (string, string, error) {
	if clientType != ClientTypeConfidential {
		return "", "", nil
	}

	secret, err := generateRequestID()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate client secret: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return secret, string(hash), nil
}

// ValidateClientCredentials verifies a client secret against the stored
// bcrypt hash. Public clients have no secret and always fail here.
func (s *Server) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.clientStore.GetClient(ctx, clientID)
	if err != nil {
		return err
	}

	if client.ClientSecretHash == "" {
		return fmt.Errorf("client has no secret configured")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		return fmt.Errorf("invalid client credentials")
	}

	return nil
}

// GetClient retrieves a client by ID (for use by handlers)
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	return s.clientStore.GetClient(ctx, clientID)
}
