// Package reorder implements the circular reorder buffer (RB): the
// small ring the Pump uses to hold foreign-producer Chunks aside while
// it finishes assembling the currently active producer's message, so
// that SQ's arbitrary interleaving of producers becomes per-producer
// contiguous output.
package reorder

import (
	"sync/atomic"
	"time"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

// Popper is the one thing the ring needs from its upstream: a way to
// pull the next Chunk off the submission queue.
type Popper interface {
	Pop(timeout time.Duration) (chunk.Chunk, bool)
}

// CircularReorder is a bounded ring of rbLen Chunks. It is exclusively
// owned and driven by the Pump; nothing else touches it (spec.md §5).
type CircularReorder struct {
	sq      Popper
	timeout time.Duration
	chunkSz int
	rbLen   int

	arena []chunk.Chunk // rbLen slots, each chunkSz bytes

	stuffStart int // index of the oldest valid chunk
	stuffEnd   int // index of the next slot fetch() will fill

	// count is written only by the Pump, but read by pkg/diag's
	// Reporter from its own goroutine (spec.md §5's "exclusively owned
	// by the Pump" covers mutation, not an external read-only
	// diagnostics snapshot) — atomic so that read is well-defined.
	count atomic.Int64

	foundIdx       int
	inspectedCount int
	inspected      bool
}

// New allocates a ring of rbLen chunks of chunkSz bytes each, popping
// from sq with the given pop timeout. All storage is allocated here,
// once; nothing allocates afterward.
func New(sq Popper, rbLen, chunkSz int, popTimeout time.Duration) *CircularReorder {
	arena := make([]chunk.Chunk, rbLen)
	for i := range arena {
		arena[i] = chunk.New(chunkSz, chunk.TaskIDInvalid)
	}
	return &CircularReorder{
		sq:        sq,
		timeout:   popTimeout,
		chunkSz:   chunkSz,
		rbLen:     rbLen,
		arena:     arena,
		inspected: true,
	}
}

func (r *CircularReorder) advance(i int) int { return (i + 1) % r.rbLen }

// IsEmpty reports whether the ring holds no committed chunks.
func (r *CircularReorder) IsEmpty() bool { return r.count.Load() == 0 }

// IsFull reports whether the ring is at capacity.
func (r *CircularReorder) IsFull() bool { return r.count.Load() == int64(r.rbLen) }

// IsInspected reports whether the last inspect() scan exhausted the
// ring without finding its target (and therefore already compacted).
func (r *CircularReorder) IsInspected() bool { return r.inspected }

// Count reports the number of committed chunks currently in the ring,
// for diagnostics (spec.md §8 property 3, "RB.count <= rbLen"). Safe
// to call from a goroutine other than the Pump's.
func (r *CircularReorder) Count() int { return int(r.count.Load()) }

// Cap reports the configured ring capacity, rbLen.
func (r *CircularReorder) Cap() int { return r.rbLen }

// ClearInspected resets the scan cursor to the current head so the
// next Inspect call starts a fresh forward scan.
func (r *CircularReorder) ClearInspected() {
	r.inspected = false
	r.inspectedCount = 0
	r.foundIdx = r.stuffStart
}

// Fetch pops one Chunk from the submission queue into the ring slot at
// stuffEnd and returns a view of it, without committing it — the
// caller must call KeepFetched to actually grow the ring, or simply
// let the slot be overwritten by the next Fetch. If the queue had
// nothing within the timeout, the returned view's tag is
// TaskIDInvalid and it must not be committed (spec.md §4.3, §9 Open
// Question #3).
func (r *CircularReorder) Fetch() chunk.Chunk {
	slot := r.arena[r.stuffEnd]
	c, ok := r.sq.Pop(r.timeout)
	if !ok {
		slot.Invalidate()
	} else {
		copy(slot, c)
	}
	return slot
}

// KeepFetched commits the chunk from the last Fetch into the ring.
// Must never be called when that fetch returned TaskIDInvalid.
func (r *CircularReorder) KeepFetched() {
	r.stuffEnd = r.advance(r.stuffEnd)
	r.count.Add(1)
}

// Peek returns the oldest chunk in the ring without removing it.
func (r *CircularReorder) Peek() chunk.Chunk { return r.arena[r.stuffStart] }

// Pop discards the oldest chunk in the ring.
func (r *CircularReorder) Pop() {
	r.count.Add(-1)
	r.stuffStart = r.advance(r.stuffStart)
	r.foundIdx = r.stuffStart
}

// Inspect scans forward from the cursor looking for a chunk tagged
// targetTaskId. If found, it returns that chunk's view with
// IsInspected()==false. If the scan exhausts the ring without a
// match, Inspect compacts away every hole first and sets
// IsInspected()==true.
func (r *CircularReorder) Inspect(target chunk.TaskID) chunk.Chunk {
	count := int(r.count.Load())
	for r.inspectedCount < count && r.arena[r.foundIdx].Tag() != target {
		r.inspectedCount++
		r.foundIdx = r.advance(r.foundIdx)
	}
	if r.inspectedCount == count {
		r.compact()
		r.inspected = true
	} else {
		r.inspected = false
	}
	return r.arena[r.foundIdx]
}

// RemoveFound marks the chunk found by the last successful Inspect as
// a hole, to be dropped by the next compaction. Calling this when
// IsInspected() is true is undefined; callers must guard against it
// (spec.md §4.3).
func (r *CircularReorder) RemoveFound() {
	r.arena[r.foundIdx].Invalidate()
}

// compact slides every valid chunk in the spanned range down over the
// holes ahead of it, preserving relative order, and shrinks the ring
// to the new end.
//
// The original (original_source/src/logutil.cpp,
// CircularBuffer::inspect) walks two raw pointers and stops when
// source reaches mStuffEnd — which is ambiguous exactly when the ring
// is full, since a full ring's start and end pointer coincide the
// same way an empty one's do. This walks a plain count of the spanned
// slots instead of comparing positions, which has no such ambiguity
// and needs no separate wrap correction (spec.md §9 Open Question #1).
func (r *CircularReorder) compact() {
	spanned := int(r.count.Load())
	read := r.stuffStart
	write := r.stuffStart
	removed := 0
	for i := 0; i < spanned; i++ {
		if r.arena[read].Valid() {
			if write != read {
				copy(r.arena[write], r.arena[read])
			}
			write = r.advance(write)
		} else {
			removed++
		}
		read = r.advance(read)
	}
	r.count.Add(-int64(removed))
	r.stuffEnd = write
}
