package host

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCurrentThreadIDDiffersAcrossGoroutines(t *testing.T) {
	h := New()
	done := make(chan uint32, 1)
	go func() { done <- h.CurrentThreadID() }()
	other := <-done
	mine := h.CurrentThreadID()
	if mine == other {
		t.Fatalf("expected distinct goroutines to report distinct thread ids")
	}
}

func TestThreadNameRoundTrip(t *testing.T) {
	h := New()
	h.SetThreadName("worker-1")
	name, ok := h.CurrentThreadName()
	if !ok || name != "worker-1" {
		t.Fatalf("expected worker-1, got %q ok=%v", name, ok)
	}
}

func TestMonotonicMillisAdvances(t *testing.T) {
	h := New()
	t0 := h.MonotonicMillis()
	time.Sleep(5 * time.Millisecond)
	t1 := h.MonotonicMillis()
	if t1 < t0 {
		t.Fatalf("monotonic clock must not go backward: %d then %d", t0, t1)
	}
}

func TestStartOneShotTimerFiresFlag(t *testing.T) {
	h := New()
	var flag atomic.Bool
	h.StartOneShotTimer(10, &flag)
	time.Sleep(50 * time.Millisecond)
	if !flag.Load() {
		t.Fatalf("expected the refresh flag to be set after the timer fired")
	}
}

func TestSpawnAndJoinPump(t *testing.T) {
	h := New()
	var ran atomic.Bool
	h.SpawnPump(func() { ran.Store(true) })
	h.JoinPump()
	if !ran.Load() {
		t.Fatalf("expected the spawned function to run before Join returns")
	}
}
