package repository

import (
	"time"
)

// RateLimitRepository interface defines the per-key counter underneath
// the rate limiter. Increment must be atomic: concurrent callers at the
// window boundary must never both observe a count under the ceiling.
type RateLimitRepository interface {
	// Increment bumps the counter for key, starting a window of the
	// given duration on first touch, and returns the new count and the
	// time the window resets.
	Increment(key string, window time.Duration) (int64, time.Time, error)
}
