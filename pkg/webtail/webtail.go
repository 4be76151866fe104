// Package webtail taps the already-assembled, de-interleaved byte
// stream and fans it out to connected browsers for live tailing — a
// read-only observer sitting downstream of a Sink, never touching the
// core's buffers. Grounded on guettli-mobileshell's websocket server:
// the same Upgrader-plus-broadcast-loop shape, repurposed from an
// interactive terminal session to a one-way log tail.
package webtail

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader mirrors mobileshell's origin check: same-origin requests
// are accepted, everything else is logged and rejected.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Broadcaster fans out every Write call to all currently connected
// websocket clients. It implements io.Writer so a caller can wrap a
// real Sink with it (writing to both) or feed it directly from
// whatever already consumes the Sink's output.
type Broadcaster struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// New constructs an empty Broadcaster.
func New(log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{log: log, clients: make(map[*websocket.Conn]chan []byte)}
}

// Write copies p to every connected client's send queue, dropping the
// oldest pending frame for any client whose queue is already full
// rather than blocking the writer on a slow browser.
func (b *Broadcaster) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	b.mu.Lock()
	for _, ch := range b.clients {
		select {
		case ch <- cp:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cp:
			default:
			}
		}
	}
	b.mu.Unlock()
	return len(p), nil
}

// ServeHTTP upgrades the connection and streams broadcast frames to
// it until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("webtail upgrade failed", zap.Error(err))
		return
	}
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.clients[conn] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		_ = conn.Close()
	}()

	// Drain client->server frames (pings/close) so the read side
	// notices disconnects; webtail itself is one-way.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case frame := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// ListenAndServe starts an HTTP server on addr serving b on every
// path. Meant to run on its own goroutine; returns when the server
// stops, same as http.ListenAndServe.
func ListenAndServe(addr string, b *Broadcaster) error {
	return http.ListenAndServe(addr, b)
}

// ClientCount reports how many browsers are currently tailing.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
