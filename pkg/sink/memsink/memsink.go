// Package memsink is an in-process Sink backed by net.Pipe, patterned
// on the teacher's pkg/transport/mem/mem.go. It has no business being
// a production sink; it exists so tests and local demos can observe
// the exact bytes the engine would otherwise hand to a real transport,
// without a socket or a file.
package memsink

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
)

// Sink writes every Transmit call to one side of a net.Pipe. The
// other side (the net.Conn New returns) is what a test or demo consumes.
type Sink struct {
	mu sync.Mutex
	bw *bufio.Writer
	c  net.Conn
}

// New returns a Sink and the net.Conn a reader should use to drain it.
func New() (*Sink, net.Conn) {
	c1, c2 := net.Pipe()
	return &Sink{bw: bufio.NewWriter(c1), c: c1}, c2
}

// Transmit writes buffer[:length] to the pipe. net.Pipe is
// synchronous and unbuffered, so a slow reader backpressures this
// call; the engine's Pump already treats that as a stalled sink via
// inFlight staying true until the write returns.
func (s *Sink) Transmit(buffer []byte, length int, inFlight *atomic.Bool) {
	s.mu.Lock()
	_, err := s.bw.Write(buffer[:length])
	if err == nil {
		err = s.bw.Flush()
	}
	s.mu.Unlock()
	if err != nil {
		// Sink failure: treated as never-completing. Leave inFlight
		// true so the core's stall detection can act on it instead of
		// silently dropping the buffer.
		return
	}
	inFlight.Store(false)
}

// Close closes the write side of the pipe.
func (s *Sink) Close() error {
	return s.c.Close()
}
