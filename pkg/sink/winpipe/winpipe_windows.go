//go:build windows

package winpipe

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeSink writes every Transmit call straight through to a Windows
// named pipe, dialed once and kept open, the way the teacher's
// pkg/transport/winpipe/winpipe_windows.go dials with
// winio.DialPipeContext.
type pipeSink struct {
	mu   sync.Mutex
	conn net.Conn
}

// New dials the named pipe at pipeName (e.g. `\\.\pipe\logmux`).
func New(pipeName string) (Sink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := winio.DialPipeContext(ctx, pipeName)
	if err != nil {
		return nil, err
	}
	return &pipeSink{conn: conn}, nil
}

// Transmit writes buffer[:length] to the pipe. Named-pipe writes are
// synchronous, so inFlight clears before Transmit returns, per the
// Sink contract's "implementations that transmit synchronously clear
// the flag before returning" (spec.md §6).
func (s *pipeSink) Transmit(buffer []byte, length int, inFlight *atomic.Bool) {
	s.mu.Lock()
	_, err := s.conn.Write(buffer[:length])
	s.mu.Unlock()
	if err != nil {
		// Sink failure per spec.md §7: leave inFlight true, stalling
		// the Pump's busy-wait rather than silently dropping the
		// buffer. Not recovered here; callers must arrange a
		// sink-level reset (spec.md §7).
		return
	}
	inFlight.Store(false)
}

// Close closes the pipe connection.
func (s *pipeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
