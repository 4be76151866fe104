// Package transmit implements the double-buffered transmit pair (TX):
// the arena the Pump assembles per-producer-contiguous output into,
// and the fullness/timer-driven decision to hand an arena to the Sink.
package transmit

import (
	"sync/atomic"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

// Pacer is the slice of Host the pair needs: a busy-wait step while an
// arena drains, and the one-shot refresh timer.
type Pacer interface {
	Pause(ms uint32)
	StartOneShotTimer(ms uint32, flag *atomic.Bool)
}

// Transmitter is the slice of Sink the pair hands a full arena to.
type Transmitter interface {
	Transmit(buffer []byte, length int, inFlight *atomic.Bool)
}

// Pair is the TransmitPair of spec.md §4.4. It is exclusively owned
// and driven by the Pump.
type Pair struct {
	host Pacer
	sink Transmitter

	txLen         int
	pauseLength   uint32
	refreshPeriod uint32

	arenas    [2][]byte
	byteIndex [2]int

	// chunkCount and write are written only by the Pump, but
	// FillChunkCount is also read by pkg/diag's Reporter from its own
	// goroutine — atomic so that read is well-defined (spec.md §5's
	// "exclusively owned by the Pump" covers mutation, not an external
	// read-only diagnostics snapshot).
	chunkCount [2]atomic.Int64
	write      atomic.Int32

	inFlight      atomic.Bool
	refreshNeeded atomic.Bool

	activeTaskID     chunk.TaskID
	wasTerminalChunk bool
}

// New allocates both arenas (txLen chunks' worth of payload bytes
// each, (K-1) bytes per chunk) and arms the first refresh timer, per
// the original's TransmitBuffers constructor.
func New(host Pacer, sink Transmitter, txLen, chunkSize int, pauseLength, refreshPeriod uint32) *Pair {
	p := &Pair{
		host:          host,
		sink:          sink,
		txLen:         txLen,
		pauseLength:   pauseLength,
		refreshPeriod: refreshPeriod,
		activeTaskID:  chunk.TaskIDInvalid,
	}
	arenaBytes := txLen * (chunkSize - 1)
	p.arenas[0] = make([]byte, arenaBytes)
	p.arenas[1] = make([]byte, arenaBytes)
	host.StartOneShotTimer(refreshPeriod, &p.refreshNeeded)
	return p
}

// HasActiveTask reports whether a message is currently being
// assembled into the fill arena.
func (p *Pair) HasActiveTask() bool { return p.activeTaskID != chunk.TaskIDInvalid }

// GetActiveTaskID returns the producer whose message is being
// assembled, or TaskIDInvalid if none.
func (p *Pair) GetActiveTaskID() chunk.TaskID { return p.activeTaskID }

// GotTerminalChunk reports whether the last Append call saw a '\n'.
func (p *Pair) GotTerminalChunk() bool { return p.wasTerminalChunk }

// FillChunkCount reports how many chunks have been appended into the
// currently-filling arena, for diagnostics. Safe to call from a
// goroutine other than the Pump's.
func (p *Pair) FillChunkCount() int { return int(p.chunkCount[p.write.Load()].Load()) }

// InFlight reports whether an arena is currently being handed to the
// Sink, for diagnostics.
func (p *Pair) InFlight() bool { return p.inFlight.Load() }

// RefreshNeeded reports whether the one-shot refresh timer has fired
// since the last flush, for diagnostics.
func (p *Pair) RefreshNeeded() bool { return p.refreshNeeded.Load() }

// Append appends c's payload bytes to the fill arena up to and
// including the first '\n', then updates the active-task bookkeeping.
// A TaskIDInvalid chunk (a timed-out fetch) is a no-op.
func (p *Pair) Append(c chunk.Chunk) {
	if !c.Valid() {
		return
	}
	p.wasTerminalChunk = false
	write := int(p.write.Load())
	buf := p.arenas[write]
	i := p.byteIndex[write]
	for _, b := range c.Payload() {
		buf[i] = b
		i++
		if b == '\n' {
			p.wasTerminalChunk = true
			break
		}
	}
	p.byteIndex[write] = i
	p.chunkCount[write].Add(1)
	if p.wasTerminalChunk {
		p.activeTaskID = chunk.TaskIDInvalid
	} else {
		p.activeTaskID = c.Tag()
	}
}

// TransmitIfNeeded is the flush decision of spec.md §4.4, run once per
// Pump iteration: flush on fullness (throughput-bound) or on timer
// expiry (latency-bound), whichever comes first, never touching an
// in-flight arena.
func (p *Pair) TransmitIfNeeded() {
	fill := int(p.write.Load())
	if p.chunkCount[fill].Load() == 0 {
		return
	}
	if p.chunkCount[fill].Load() == int64(p.txLen) {
		for p.inFlight.Load() {
			p.host.Pause(p.pauseLength)
		}
		p.refreshNeeded.Store(true)
	}
	if !p.inFlight.Load() && p.refreshNeeded.Load() {
		p.inFlight.Store(true)
		p.sink.Transmit(p.arenas[fill], p.byteIndex[fill], &p.inFlight)
		next := 1 - fill
		p.write.Store(int32(next))
		p.byteIndex[next] = 0
		p.chunkCount[next].Store(0)
		p.refreshNeeded.Store(false)
		p.host.StartOneShotTimer(p.refreshPeriod, &p.refreshNeeded)
	}
}
