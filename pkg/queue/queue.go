// Package queue implements the submission queue (SQ): the single
// bounded, multi-producer/single-consumer channel that every producer
// — including interrupt-context callers — pushes whole Chunks into,
// and that the Pump drains one Chunk at a time.
package queue

import (
	"time"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

// SubmissionQueue is a bounded MPSC queue of fixed-size Chunks. A Go
// buffered channel already gives the two properties spec.md §4.2
// requires: bounded capacity, and non-blocking push via select/default
// — so the queue is a thin wrapper, not a reimplementation.
type SubmissionQueue struct {
	ch chan chunk.Chunk
}

// New constructs a queue holding up to length Chunks.
func New(length int) *SubmissionQueue {
	return &SubmissionQueue{ch: make(chan chunk.Chunk, length)}
}

// Push enqueues c. From any context. If blocking is false and the
// queue is full, Push returns false immediately and c must be treated
// as dropped — never partially written, per spec.md §4.1.
func (q *SubmissionQueue) Push(c chunk.Chunk, blocking bool) bool {
	if blocking {
		q.ch <- c
		return true
	}
	select {
	case q.ch <- c:
		return true
	default:
		return false
	}
}

// PushFromISR is the non-blocking variant meant for interrupt context:
// a bounded, wait-free upper bound, never blocks regardless of the
// engine's configured blocking policy.
func (q *SubmissionQueue) PushFromISR(c chunk.Chunk) bool {
	select {
	case q.ch <- c:
		return true
	default:
		return false
	}
}

// Pop is consumer-only. It returns the next Chunk, or false if timeout
// elapses with nothing queued.
func (q *SubmissionQueue) Pop(timeout time.Duration) (chunk.Chunk, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c := <-q.ch:
		return c, true
	case <-t.C:
		return nil, false
	}
}

// Len reports the number of Chunks currently queued, for diagnostics.
func (q *SubmissionQueue) Len() int { return len(q.ch) }

// Cap reports the configured queue length.
func (q *SubmissionQueue) Cap() int { return cap(q.ch) }
