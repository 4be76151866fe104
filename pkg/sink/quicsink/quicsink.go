// Package quicsink ships the multiplexed byte stream to a remote log
// collector over a single QUIC stream, via github.com/quic-go/quic-go
// — the teacher's own transport dependency (pkg/transport/quic),
// repurposed here to carry de-interleaved log bytes to a collector
// process instead of mesh control envelopes.
package quicsink

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"math/big"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	quicgo "github.com/quic-go/quic-go"

	"github.com/nowtech-go/logmux/pkg/sink"
)

// Sink dials address on first Transmit and keeps one QUIC stream open
// for the lifetime of the process, redialing on write failure.
//
// quic-go has renamed its connection/stream return types across minor
// versions (Session -> Connection, ...); the teacher's own
// pkg/transport/quic.go sidesteps pinning to one by calling
// OpenStreamSync/AcceptStream through reflection instead of a
// compile-time method on a named interface. This sink does the same.
type Sink struct {
	address string
	limiter *sink.RateLimiter

	mu     sync.Mutex
	conn   any // quicgo.Connection, kept as `any` like the teacher's session.c
	stream io.ReadWriteCloser

	dialTimeout time.Duration
}

// Config configures the collector address and optional outbound
// byte-rate limit (0 disables limiting).
type Config struct {
	Address       string
	DialTimeout   time.Duration
	RateBytesPerS int64
	BurstBytes    int64
}

// New constructs a Sink that dials cfg.Address lazily, on the first
// Transmit call.
func New(cfg Config) *Sink {
	dt := cfg.DialTimeout
	if dt <= 0 {
		dt = 5 * time.Second
	}
	var limiter *sink.RateLimiter
	if cfg.RateBytesPerS > 0 {
		limiter = sink.NewRateLimiter(cfg.RateBytesPerS, cfg.BurstBytes)
	}
	return &Sink{address: cfg.Address, dialTimeout: dt, limiter: limiter}
}

// Transmit writes buffer[:length] to the collector stream, redialing
// first if no stream is open. The write (and any redial) runs on its
// own goroutine so Transmit returns immediately, as spec.md §4.4
// requires of an asynchronous Sink; inFlight is cleared once the
// write completes, successfully or not — a failed write just means
// the next Transmit redials (spec.md §7 treats sink failure as the
// caller's problem, not the core's).
func (s *Sink) Transmit(buffer []byte, length int, inFlight *atomic.Bool) {
	payload := make([]byte, length)
	copy(payload, buffer[:length])
	go func() {
		defer inFlight.Store(false)
		s.limiter.Wait(int64(length))
		st, err := s.ensureStream()
		if err != nil {
			return
		}
		if _, err := st.Write(payload); err != nil {
			s.mu.Lock()
			s.stream = nil
			s.conn = nil
			s.mu.Unlock()
		}
	}()
}

func (s *Sink) ensureStream() (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return s.stream, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout)
	defer cancel()
	conn, err := quicgo.DialAddr(ctx, s.address, clientTLSConfig(), &quicgo.Config{})
	if err != nil {
		return nil, err
	}
	st, err := openStreamSync(ctx, conn)
	if err != nil {
		closeConn(conn)
		return nil, err
	}
	s.conn = conn
	s.stream = st
	return st, nil
}

// Close tears down the current stream and connection, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	if s.conn != nil {
		closeConn(s.conn)
		s.conn = nil
	}
	return nil
}

func clientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"logmux"},
		MinVersion:         tls.VersionTLS13,
	}
}

// openStreamSync calls conn.OpenStreamSync(ctx) via reflection, since
// quic-go's connection return type from DialAddr is not one this
// package pins a compile-time interface to (see the Sink doc comment).
func openStreamSync(ctx context.Context, conn any) (io.ReadWriteCloser, error) {
	mv := reflect.ValueOf(conn).MethodByName("OpenStreamSync")
	if !mv.IsValid() {
		return nil, errors.New("quicsink: connection lacks OpenStreamSync")
	}
	outs := mv.Call([]reflect.Value{reflect.ValueOf(ctx)})
	if len(outs) != 2 {
		return nil, errors.New("quicsink: unexpected OpenStreamSync signature")
	}
	if !outs[1].IsNil() {
		return nil, outs[1].Interface().(error)
	}
	st, _ := outs[0].Interface().(io.ReadWriteCloser)
	if st == nil {
		return nil, errors.New("quicsink: stream does not implement io.ReadWriteCloser")
	}
	return st, nil
}

func acceptStream(ctx context.Context, conn any) (io.ReadWriteCloser, error) {
	mv := reflect.ValueOf(conn).MethodByName("AcceptStream")
	if !mv.IsValid() {
		return nil, errors.New("quicsink: connection lacks AcceptStream")
	}
	outs := mv.Call([]reflect.Value{reflect.ValueOf(ctx)})
	if len(outs) != 2 {
		return nil, errors.New("quicsink: unexpected AcceptStream signature")
	}
	if !outs[1].IsNil() {
		return nil, outs[1].Interface().(error)
	}
	st, _ := outs[0].Interface().(io.ReadWriteCloser)
	if st == nil {
		return nil, errors.New("quicsink: stream does not implement io.ReadWriteCloser")
	}
	return st, nil
}

func closeConn(conn any) {
	mv := reflect.ValueOf(conn).MethodByName("CloseWithError")
	if mv.IsValid() {
		mv.Call([]reflect.Value{reflect.ValueOf(quicgo.ApplicationErrorCode(0)), reflect.ValueOf("closing")})
		return
	}
	if c, ok := conn.(io.Closer); ok {
		_ = c.Close()
	}
}

// selfSignedCert generates a short-lived self-signed certificate, for
// a local collector standing in as its own test server.
func selfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}

// ListenCollector starts a minimal collector: it accepts QUIC
// connections one at a time and hands the bytes read from each
// connection's first stream to onChunk. Useful for tests and local
// demos that want to observe what a real collector would receive.
func ListenCollector(ctx context.Context, address string, onChunk func([]byte)) error {
	cert, err := selfSignedCert()
	if err != nil {
		return err
	}
	tlsConf := &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"logmux"}, MinVersion: tls.VersionTLS13}
	l, err := quicgo.ListenAddr(address, tlsConf, &quicgo.Config{})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			return err
		}
		go serveCollectorConn(ctx, conn, onChunk)
	}
}

func serveCollectorConn(ctx context.Context, conn any, onChunk func([]byte)) {
	st, err := acceptStream(ctx, conn)
	if err != nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := st.Read(buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
