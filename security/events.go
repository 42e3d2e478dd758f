package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Authorization flow events

	// EventAuthorizationStarted is logged when a validated authorization
	// request has been persisted and the browser is redirected to login
	EventAuthorizationStarted = "authorization_started"

	// EventAuthorizationRejected is logged when an authorization request
	// fails validation
	EventAuthorizationRejected = "authorization_rejected"

	// EventAuthorizationConsumed is logged when the login continuation step
	// consumes a pending authorization request
	EventAuthorizationConsumed = "authorization_consumed"

	// Client lifecycle events

	// EventClientRegistered is logged when a new OAuth client is registered
	EventClientRegistered = "client_registered"

	// EventClientRegistrationRejected is logged when a registration attempt is refused
	EventClientRegistrationRejected = "client_registration_rejected"

	// Abuse events

	// EventRateLimitExceeded is logged when a request is refused by rate limiting
	EventRateLimitExceeded = "rate_limit_exceeded"
)
