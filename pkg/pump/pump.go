// Package pump implements the consumer state machine that drains the
// submission queue through the reorder buffer into the transmit pair,
// transcribed from the original transmitter thread's loop.
package pump

import (
	"sync/atomic"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

// Ring is the slice of CircularReorder the Pump drives.
type Ring interface {
	IsEmpty() bool
	IsFull() bool
	IsInspected() bool
	ClearInspected()
	Fetch() chunk.Chunk
	Peek() chunk.Chunk
	Pop()
	KeepFetched()
	Inspect(target chunk.TaskID) chunk.Chunk
	RemoveFound()
}

// Transmit is the slice of the TransmitPair the Pump drives.
type Transmit interface {
	HasActiveTask() bool
	GetActiveTaskID() chunk.TaskID
	GotTerminalChunk() bool
	Append(c chunk.Chunk)
	TransmitIfNeeded()
}

// Pump owns a Ring and a Transmit pair and runs the loop of spec.md
// §4.5 on a dedicated goroutine until told to stop.
type Pump struct {
	rb          Ring
	tx          Transmit
	keepRunning atomic.Bool
	spliceCount atomic.Uint64
}

// New constructs a Pump. It does not start running until Run is
// called.
func New(rb Ring, tx Transmit) *Pump {
	p := &Pump{rb: rb, tx: tx}
	p.keepRunning.Store(true)
	return p
}

// Stop asks Run to exit at the next iteration boundary. Safe to call
// from any goroutine.
func (p *Pump) Stop() { p.keepRunning.Store(false) }

// SpliceCount reports how many times the ring-full overload release
// valve (spec.md §4.5's "RB full and we still owe the active
// producer") has fired, for diagnostics.
func (p *Pump) SpliceCount() uint64 { return p.spliceCount.Load() }

// Run is the consumer loop. Call it from the goroutine the Host spawns
// for the Pump; it returns once Stop has been called and the current
// iteration completes.
func (p *Pump) Run() {
	for p.keepRunning.Load() {
		p.step()
	}
}

// step runs exactly one iteration of the loop in spec.md §4.5. Split
// out from Run so tests can drive it deterministically.
func (p *Pump) step() {
	if !p.tx.HasActiveTask() {
		if p.rb.IsEmpty() {
			p.tx.Append(p.rb.Fetch())
		} else {
			p.tx.Append(p.rb.Peek())
			p.rb.Pop()
		}
	} else {
		active := p.tx.GetActiveTaskID()
		switch {
		case p.rb.IsEmpty():
			c := p.rb.Fetch()
			if c.Valid() {
				if c.Tag() == active {
					p.tx.Append(c)
				} else {
					p.rb.KeepFetched()
				}
			}
		case !p.rb.IsFull():
			if p.rb.IsInspected() {
				c := p.rb.Fetch()
				if c.Valid() {
					if c.Tag() == active {
						p.tx.Append(c)
					} else {
						p.rb.KeepFetched()
					}
				}
			} else {
				c := p.rb.Inspect(active)
				if !p.rb.IsInspected() {
					p.tx.Append(c)
					p.rb.RemoveFound()
				}
			}
		default:
			// Ring full and we still owe the active producer: the
			// overload release valve. Emit the ring head even though
			// it may belong to a different producer, splicing it in.
			p.spliceCount.Add(1)
			p.tx.Append(p.rb.Peek())
			p.rb.Pop()
			p.rb.ClearInspected()
		}
	}

	if p.tx.GotTerminalChunk() {
		p.rb.ClearInspected()
	}
	p.tx.TransmitIfNeeded()
}
