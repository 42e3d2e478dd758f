package server

import (
	"log/slog"
)

// Config holds authorization server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL)
	Issuer string

	// LoginURL is the absolute URL of the login page users are sent to
	// after their authorization request has been validated and stored.
	// The request identifier is appended as the request_id query parameter.
	LoginURL string

	// AuthRequestTTL is how long pending authorization requests are valid
	AuthRequestTTL int64 // seconds, default: 600 (10 minutes)

	// SupportedScopes lists the scopes that are allowed across all clients.
	// If empty, all scopes are allowed at the server level; per-client scope
	// restrictions still apply.
	SupportedScopes []string

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers
	// WARNING: Only enable if behind a trusted reverse proxy (nginx, HAProxy, etc.)
	// When false, uses direct connection IP (secure by default)
	// Default: false
	TrustProxy bool // default: false

	// TrustedProxyCount is the number of trusted proxies in front of this server
	// Used with TrustProxy to correctly extract client IP from X-Forwarded-For
	// Default: 1
	TrustedProxyCount int // default: 1

	// MaxClientsPerIP limits client registrations per IP address
	// Prevents DoS via mass client registration
	// Default: 10
	MaxClientsPerIP int // default: 10

	// AllowInsecureHTTP permits a non-localhost http:// issuer.
	// WARNING: OAuth over HTTP exposes credentials to interception.
	// Default: false
	AllowInsecureHTTP bool // default: false
}

// applySecureDefaults applies secure-by-default configuration values
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	if config.AuthRequestTTL == 0 {
		config.AuthRequestTTL = 600 // 10 minutes
	}
	if config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
	if config.MaxClientsPerIP == 0 {
		config.MaxClientsPerIP = 10
	}

	if config.TrustProxy {
		logger.Warn("Trusting proxy headers for client IP extraction",
			"risk", "IP spoofing if proxy is not properly configured",
			"trusted_proxy_count", config.TrustedProxyCount)
	}

	return config
}
