package sink

import (
	"testing"
	"time"
)

func TestRateLimiterNilIsNoop(t *testing.T) {
	var l *RateLimiter
	start := time.Now()
	l.Wait(1 << 30)
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("nil RateLimiter.Wait should return immediately")
	}
}

func TestRateLimiterDisabledIsNoop(t *testing.T) {
	l := NewRateLimiter(0, 0)
	start := time.Now()
	l.Wait(1 << 30)
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("zero-rate RateLimiter.Wait should return immediately")
	}
}

func TestRateLimiterAllowsBurstThenPaces(t *testing.T) {
	l := NewRateLimiter(1000, 1000) // 1000 bytes/s, burst 1000
	start := time.Now()
	l.Wait(1000) // consumes the full burst instantly
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("burst-sized Wait should not block")
	}
	l.Wait(500) // needs ~500ms to refill
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("expected pacing to delay roughly 500ms, elapsed %v", elapsed)
	}
}
