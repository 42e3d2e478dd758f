// Package security provides security features for the authorization server
// including audit logging, rate limiting, and secure header management.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogAuthorizationStarted logs when a validated authorization request is persisted
func (a *Auditor) LogAuthorizationStarted(clientID, ipAddress, requestID, scope string) {
	a.LogEvent(Event{
		Type:      EventAuthorizationStarted,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			// Request IDs are capability tokens for the login step; log a hash
			// so audit trails correlate without leaking the identifier.
			"request_id_hash": hashForLogging(requestID),
			"scope":           scope,
		},
	})
}

// LogAuthorizationRejected logs a rejected authorization request with its OAuth error code
func (a *Auditor) LogAuthorizationRejected(clientID, ipAddress, errorCode, reason string) {
	a.LogEvent(Event{
		Type:      EventAuthorizationRejected,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"error_code": errorCode,
			"reason":     reason,
		},
	})
}

// LogAuthorizationConsumed logs when the login step consumes a pending request
func (a *Auditor) LogAuthorizationConsumed(clientID, requestID string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationConsumed,
		ClientID: clientID,
		Details: map[string]any{
			"request_id_hash": hashForLogging(requestID),
		},
	})
}

// LogClientRegistered logs when a new client is registered
func (a *Auditor) LogClientRegistered(clientID, clientType, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventClientRegistered,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"client_type": clientType,
		},
	})
}

// LogRateLimitExceeded logs when a rate limit is exceeded
func (a *Auditor) LogRateLimitExceeded(ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// hashForLogging creates a truncated SHA-256 hash of sensitive values so log
// entries can be correlated without exposing the value itself.
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:])[:16]
}
