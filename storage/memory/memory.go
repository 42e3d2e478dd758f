// Package memory provides an in-memory implementation of all storage interfaces.
// It is suitable for development, testing, and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaulton/vaulton/instrumentation"
	"github.com/vaulton/vaulton/security"
	"github.com/vaulton/vaulton/storage"
)

// Store is an in-memory implementation of the client directory and the
// pending authorization request store.
//
// A single RWMutex guards both maps: concurrent readers proceed in
// parallel, writers of distinct keys serialize only on the map update
// itself, and a reader never observes a half-written record.
type Store struct {
	mu sync.RWMutex

	clients      map[string]*storage.Client
	authRequests map[string]*storage.AuthorizationRequest

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	meter           metric.Meter

	// Atomic counters for metrics (lock-free access during metric collection)
	clientsCountAtomic      atomic.Int64
	authRequestsCountAtomic atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.ClientStore      = (*Store)(nil)
	_ storage.AuthRequestStore = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval.
// If cleanupInterval is 0 or negative, the default of 1 minute is used.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		authRequests:    make(map[string]*storage.AuthorizationRequest),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	// Background sweep of expired authorization requests
	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
		s.meter = inst.Meter("storage")
	}

	// Seed atomic counters with current sizes
	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.authRequestsCountAtomic.Store(int64(len(s.authRequests)))
	s.mu.Unlock()

	if inst != nil {
		if err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.clientsCountAtomic.Load() },
			func() int64 { return s.authRequestsCountAtomic.Load() },
		); err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop terminates the background cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		err = fmt.Errorf("invalid client")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ClientID]; exists {
		err = storage.ErrDuplicateClientID
		return err
	}

	s.clients[client.ClientID] = client
	s.clientsCountAtomic.Add(1)

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = storage.ErrClientNotFound
		return nil, err
	}

	return client, nil
}

// ============================================================
// AuthRequestStore Implementation
// ============================================================

// SaveAuthorizationRequest inserts a new pending authorization request.
// The insert is atomic under the write lock: concurrent inserts of the same
// request ID are serialized and exactly one succeeds.
func (s *Store) SaveAuthorizationRequest(ctx context.Context, req *storage.AuthorizationRequest) error {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_request")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_request", err, startTime)
	}()

	if req == nil || req.RequestID == "" {
		err = fmt.Errorf("invalid authorization request")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authRequests[req.RequestID]; exists {
		err = storage.ErrDuplicateRequestID
		return err
	}

	s.authRequests[req.RequestID] = req
	s.authRequestsCountAtomic.Add(1)

	s.logger.Debug("Saved authorization request",
		"request_id", req.RequestID,
		"client_id", req.ClientID)
	return nil
}

// GetAuthorizationRequest retrieves a pending request without removing it
func (s *Store) GetAuthorizationRequest(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	ctx, span := s.startStorageSpan(ctx, "get_authorization_request")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_authorization_request", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.authRequests[requestID]
	if !ok {
		err = storage.ErrRequestNotFound
		return nil, err
	}

	if security.IsExpired(req.ExpiresAt) {
		err = storage.ErrRequestExpired
		return nil, err
	}

	return req, nil
}

// ConsumeAuthorizationRequest atomically retrieves and deletes a pending request.
// The check and the delete happen under a single write lock so two concurrent
// consumers of the same request ID cannot both succeed.
func (s *Store) ConsumeAuthorizationRequest(ctx context.Context, requestID string) (*storage.AuthorizationRequest, error) {
	ctx, span := s.startStorageSpan(ctx, "consume_authorization_request")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "consume_authorization_request", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.authRequests[requestID]
	if !ok {
		err = storage.ErrRequestNotFound
		return nil, err
	}

	delete(s.authRequests, requestID)
	s.authRequestsCountAtomic.Add(-1)

	if security.IsExpired(req.ExpiresAt) {
		err = storage.ErrRequestExpired
		return nil, err
	}

	return req, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for requestID, req := range s.authRequests {
		if security.IsExpired(req.ExpiresAt) {
			delete(s.authRequests, requestID)
			s.authRequestsCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired authorization requests", "count", cleaned)
	}
}

// ============================================================
// Instrumentation helpers
// ============================================================

// startStorageSpan starts a tracing span for a storage operation if
// instrumentation is configured, otherwise returns the context unchanged.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(attribute.String("storage.backend", "memory")))
}

// recordStorageOperation records metrics and span status for a completed operation
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if s.instrumentation != nil {
		if m := s.instrumentation.Metrics(); m != nil {
			m.RecordStorageOperation(ctx, operation, result, float64(time.Since(startTime).Milliseconds()))
		}
	}
}
