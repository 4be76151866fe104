package engine

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nowtech-go/logmux/pkg/chunk"
	"github.com/nowtech-go/logmux/pkg/config"
	"github.com/nowtech-go/logmux/pkg/host"
)

// recordingSink is a synchronous sink: it clears inFlight before
// Transmit returns, per sink.Sink's contract for synchronous senders.
type recordingSink struct {
	mu  sync.Mutex
	got []byte
}

func (s *recordingSink) Transmit(buffer []byte, length int, inFlight *atomic.Bool) {
	s.mu.Lock()
	s.got = append(s.got, buffer[:length]...)
	s.mu.Unlock()
	inFlight.Store(false)
}

func (s *recordingSink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.got))
	copy(out, s.got)
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.ChunkSize = 8
	cfg.Engine.QueueLength = 16
	cfg.Engine.RingBufferLength = 16
	cfg.Engine.TransmitBufferLength = 8
	cfg.Engine.PauseLengthMS = 2
	cfg.Engine.RefreshPeriodMS = 30
	cfg.Engine.Blocking = true
	cfg.Engine.TaskRepresentation = "id"
	cfg.Formats.TickEnabled = false
	return cfg
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	cfg := testConfig()
	h := host.New()
	sk := &recordingSink{}

	_, err := New(nil, h, sk, nil)
	assert.Error(t, err)
	_, err = New(cfg, nil, sk, nil)
	assert.Error(t, err)
	_, err = New(cfg, h, nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsUndersizedChunk(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.ChunkSize = 1
	_, err := New(cfg, host.New(), &recordingSink{}, nil)
	assert.Error(t, err)
}

func TestRegisterCurrentTaskIsIdempotent(t *testing.T) {
	e, err := New(testConfig(), host.New(), &recordingSink{}, nil)
	require.NoError(t, err)
	id1 := e.RegisterCurrentTask("alpha")
	id2 := e.RegisterCurrentTask("renamed")
	assert.Equal(t, id1, id2)
}

// drainUntilNewline pops chunks directly off the submission queue
// (white-box: this test lives in package engine) and concatenates
// payload bytes up to and including the first '\n', exactly the way
// transmit.Pair.Append does, bypassing the Pump entirely.
func drainUntilNewline(t *testing.T, e *Engine) []byte {
	var out []byte
	for i := 0; i < 64; i++ {
		c, ok := e.sq.Pop(50 * time.Millisecond)
		if !ok {
			t.Fatalf("queue drained before a newline was seen, got %q so far", out)
		}
		for _, b := range c.Payload() {
			out = append(out, b)
			if b == '\n' {
				return out
			}
		}
	}
	t.Fatalf("no newline after 64 chunks")
	return out
}

func TestNewBuilderEmitsIDHeaderMatchingSingleProducerScenario(t *testing.T) {
	e, err := New(testConfig(), host.New(), &recordingSink{}, nil)
	require.NoError(t, err)

	id := e.RegisterCurrentTask("alpha")
	b := e.NewBuilder(id)
	b.WriteString("hi")
	b.Flush()

	got := drainUntilNewline(t, e)
	assert.Equal(t, "01 hi\n", string(got))
}

func TestNewSubsystemBuilderIsNilUntilRegistered(t *testing.T) {
	e, err := New(testConfig(), host.New(), &recordingSink{}, nil)
	require.NoError(t, err)

	id := e.RegisterCurrentTask("alpha")
	assert.Nil(t, e.NewSubsystemBuilder(id))

	e.RegisterSubsystem(id, "net")
	b := e.NewSubsystemBuilder(id)
	require.NotNil(t, b)
	b.WriteString("link up")
	b.Flush()

	got := drainUntilNewline(t, e)
	assert.Contains(t, string(got), "net ")
	assert.Contains(t, string(got), "link up\n")
}

func TestNewISRBuilderTagsChunksISR(t *testing.T) {
	e, err := New(testConfig(), host.New(), &recordingSink{}, nil)
	require.NoError(t, err)

	b := e.NewISRBuilder()
	b.WriteString("trap")
	b.Flush()

	c, ok := e.sq.Pop(50 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, chunk.TaskIDISR, c.Tag())
}

func TestFluentDisabledReturnsNil(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.EnableFluentAPI = false
	e, err := New(cfg, host.New(), &recordingSink{}, nil)
	require.NoError(t, err)
	assert.Nil(t, e.Fluent(chunk.TaskID(1)))
}

func TestFluentChainWritesFormattedFields(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.EnableFluentAPI = true
	e, err := New(cfg, host.New(), &recordingSink{}, nil)
	require.NoError(t, err)

	id := e.RegisterCurrentTask("worker")
	f := e.Fluent(id)
	require.NotNil(t, f)
	f.Str("count=").Int32(-7).Str(" ok=").Bool(true).End()

	got := drainUntilNewline(t, e)
	assert.Contains(t, string(got), "count=-7")
	assert.Contains(t, string(got), "ok=true")
}

func TestEndToEndTwoProducersNoContention(t *testing.T) {
	sk := &recordingSink{}
	e, err := New(testConfig(), host.New(), sk, nil)
	require.NoError(t, err)
	e.Start()
	defer e.Stop()

	var idA, idB chunk.TaskID
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		idA = e.RegisterCurrentTask("producer-a")
		b := e.NewBuilder(idA)
		b.WriteString("hi")
		b.Flush()
	}()
	go func() {
		defer wg.Done()
		idB = e.RegisterCurrentTask("producer-b")
		b := e.NewBuilder(idB)
		b.WriteString("yo")
		b.Flush()
	}()
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out := string(sk.bytes())
		if len(out) > 0 && containsBoth(out, "hi\n", "yo\n") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("sink never received both messages, got %q", string(sk.bytes()))
}

func containsBoth(s, a, b string) bool {
	return strings.Contains(s, a) && strings.Contains(s, b)
}
