package chunk

import "sync/atomic"

// TruncationFlag is the shared signal used to realize spec.md's
// "@ separator" convention: a ChunkBuilder marks it when its
// non-blocking push to the submission queue drops a chunk, and the
// header writer of the next
// message from any producer consults-and-clears it so the reader
// knows at least one chunk went missing since the previous message.
type TruncationFlag struct {
	pending atomic.Bool
}

// Mark records that a chunk was lost.
func (f *TruncationFlag) Mark() { f.pending.Store(true) }

// ConsumeAndClear reports whether a loss is pending and clears it.
func (f *TruncationFlag) ConsumeAndClear() bool { return f.pending.Swap(false) }

// Pending reports whether a loss is currently flagged, without
// clearing it. For diagnostics snapshots that must not interfere with
// the header writer's consume-and-clear protocol.
func (f *TruncationFlag) Pending() bool { return f.pending.Load() }
