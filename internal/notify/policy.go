package notify

import "time"

const (
	DefaultMaxAge      = 7 * 24 * time.Hour
	DefaultMaxAttempts = 10
)

// Policy decides when a pending message is discarded regardless of
// acknowledgment. Pure and safe for concurrent use.
type Policy struct {
	MaxAge      time.Duration
	MaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{MaxAge: DefaultMaxAge, MaxAttempts: DefaultMaxAttempts}
}

// Expired reports whether the message should be dropped: too old, or out of
// delivery attempts.
func (p Policy) Expired(m Message, now time.Time) bool {
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if m.Age(now) >= maxAge {
		return true
	}
	return m.RetryCount >= maxAttempts
}
