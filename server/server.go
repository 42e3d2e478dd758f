package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vaulton/vaulton/instrumentation"
	"github.com/vaulton/vaulton/security"
	"github.com/vaulton/vaulton/storage"
)

// Server implements the core authorization logic (transport-agnostic).
// It validates authorization requests, persists pending authorizations,
// and registers OAuth clients.
type Server struct {
	clientStore      storage.ClientStore
	authRequestStore storage.AuthRequestStore

	Auditor *security.Auditor
	Logger  *slog.Logger
	Config  *Config

	metrics *instrumentation.Metrics

	// Tracks registrations per IP for DoS protection.
	clientsPerIPMu sync.Mutex
	clientsPerIP   map[string]int
}

// New creates a new authorization server
func New(
	clientStore storage.ClientStore,
	authRequestStore storage.AuthRequestStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if clientStore == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if authRequestStore == nil {
		return nil, fmt.Errorf("authorization request store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applySecureDefaults(config, logger)

	srv := &Server{
		clientStore:      clientStore,
		authRequestStore: authRequestStore,
		Config:           config,
		Logger:           logger,
		clientsPerIP:     make(map[string]int),
	}

	if err := srv.validateHTTPSEnforcement(); err != nil {
		return nil, err
	}

	return srv, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetInstrumentation wires metric recording into the authorization flow
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	s.metrics = inst.Metrics()
}
