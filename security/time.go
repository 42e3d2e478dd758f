package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the grace period applied to expiry
	// checks. It prevents false expiration errors caused by minor time
	// differences between the systems that create and consume records.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks if a record is expired with the default clock skew grace period
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod checks if a record is expired with a custom grace period.
// A zero expiry time means the record never expires.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}
