// Package sink defines the Sink interface: the core's only contract
// with wherever the assembled byte stream actually goes.
package sink

import "sync/atomic"

// Sink starts an asynchronous send of buffer[0:length] and must
// atomically store false into inFlight once the bytes are durably
// handed off — to hardware, the OS, or a remote peer. A Sink that
// sends synchronously must clear inFlight before Transmit returns
// (spec.md §6).
//
// The core never reads or writes buffer again until inFlight reads
// false; a Sink must not retain buffer past that point either, since
// the core reuses the underlying array for the next transmission into
// that arena.
type Sink interface {
	Transmit(buffer []byte, length int, inFlight *atomic.Bool)
}
