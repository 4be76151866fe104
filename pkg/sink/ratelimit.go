package sink

import (
	"sync"
	"time"
)

// RateLimiter is a token-bucket byte-rate limiter, adapted from the
// teacher's pkg/core/priocq/shaper.go TokenBucket (there used to shape
// per-destination mesh-forwarding traffic) into a single-destination
// pacer for a network-attached Sink's outbound bytes.
type RateLimiter struct {
	mu       sync.Mutex
	capacity int64
	tokens   int64
	rate     int64 // bytes per second; zero disables limiting
	last     time.Time
}

// NewRateLimiter builds a limiter admitting ratePerSec bytes/second,
// bursting up to capacity bytes. A zero rate disables limiting:
// Wait always returns immediately.
func NewRateLimiter(ratePerSec, capacity int64) *RateLimiter {
	if capacity <= 0 {
		capacity = ratePerSec
	}
	return &RateLimiter{capacity: capacity, tokens: capacity, rate: ratePerSec, last: time.Now()}
}

// Wait blocks until n bytes' worth of tokens are available, then
// consumes them. Called from a Sink's send goroutine before it writes
// to the wire; inFlight stays true while it waits.
func (l *RateLimiter) Wait(n int64) {
	if l == nil || l.rate <= 0 {
		return
	}
	for {
		ok, wait := l.allow(n)
		if ok {
			return
		}
		time.Sleep(wait)
	}
}

func (l *RateLimiter) allow(n int64) (ok bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if dt := now.Sub(l.last); dt > 0 {
		add := (l.rate * dt.Nanoseconds()) / int64(time.Second)
		if add > 0 {
			l.tokens += add
			if l.tokens > l.capacity {
				l.tokens = l.capacity
			}
			l.last = now
		}
	}
	if l.tokens >= n {
		l.tokens -= n
		return true, 0
	}
	need := n - l.tokens
	return false, time.Duration((need * int64(time.Second)) / l.rate)
}
