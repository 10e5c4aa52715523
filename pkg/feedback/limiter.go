package feedback

import "time"

// RateLimiter gates a feedback channel to at most one update per interval.
// It is not safe for concurrent use; the Controller serializes access.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
	fired    bool
}

// NewRateLimiter creates a limiter with the given minimum interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Allow reports whether an update may go through at now and, if so,
// records now as the last fire time. A denied call changes nothing.
func (r *RateLimiter) Allow(now time.Time) bool {
	if r.fired && now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	r.fired = true
	return true
}

// Last returns the last time Allow returned true.
func (r *RateLimiter) Last() (time.Time, bool) {
	return r.last, r.fired
}

// Interval returns the configured minimum interval.
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}
