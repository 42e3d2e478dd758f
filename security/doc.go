// Package security provides the cross-cutting security features of the
// authorization server: audit logging with PII protection, per-identifier
// rate limiting, client IP extraction behind proxies, security response
// headers, and expiry checks with clock skew tolerance.
package security
