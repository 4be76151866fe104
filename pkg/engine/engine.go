// Package engine wires chunk, queue, reorder, transmit, pump, registry
// and host together into the producer-facing façade described by
// spec.md §6, plus a one-time-init process-wide accessor in place of
// the original's static sInstance pointer (spec.md §9).
package engine

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nowtech-go/logmux/pkg/chunk"
	"github.com/nowtech-go/logmux/pkg/config"
	"github.com/nowtech-go/logmux/pkg/host"
	"github.com/nowtech-go/logmux/pkg/pump"
	"github.com/nowtech-go/logmux/pkg/queue"
	"github.com/nowtech-go/logmux/pkg/registry"
	"github.com/nowtech-go/logmux/pkg/reorder"
	"github.com/nowtech-go/logmux/pkg/sink"
	"github.com/nowtech-go/logmux/pkg/transmit"
)

// Engine is the explicit handle spec.md §9 asks for in place of the
// original's static sInstance: every producer-facing method hangs off
// one constructed value, never off a package-level variable.
type Engine struct {
	cfg  *config.Config
	host host.Host
	sink sink.Sink
	log  *zap.Logger

	sq  *queue.SubmissionQueue
	rb  *reorder.CircularReorder
	tx  *transmit.Pair
	rg  *registry.TaskRegistry
	pmp *pump.Pump

	truncation chunk.TruncationFlag
	formats    chunk.Formats

	builders sync.Pool // *chunk.ChunkBuilder staging slots for the fluent API
}

// New builds every fixed-size resource named in spec.md §5 up front
// and never reallocates them. Per §7 ("Allocation failure at
// construction: fatal"), this is the one constructor in the package
// that returns an error.
func New(cfg *config.Config, h host.Host, sk sink.Sink, log *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	if h == nil {
		return nil, errors.New("engine: nil host")
	}
	if sk == nil {
		return nil, errors.New("engine: nil sink")
	}
	if cfg.Engine.ChunkSize < 2 {
		return nil, errors.New("engine: chunk size must be >= 2")
	}
	if log == nil {
		log = zap.NewNop()
	}

	sq := queue.New(cfg.Engine.QueueLength)
	rb := reorder.New(sq, cfg.Engine.RingBufferLength, cfg.Engine.ChunkSize, popTimeout(cfg))
	tx := transmit.New(h, sk, cfg.Engine.TransmitBufferLength, cfg.Engine.ChunkSize, cfg.Engine.PauseLengthMS, cfg.Engine.RefreshPeriodMS)
	rg := registry.New(h, cfg.Engine.AllowRegistrationLog)
	pmp := pump.New(rb, tx)

	e := &Engine{
		cfg:     cfg,
		host:    h,
		sink:    sk,
		log:     log,
		sq:      sq,
		rb:      rb,
		tx:      tx,
		rg:      rg,
		pmp:     pmp,
		formats: formatsFromConfig(cfg),
	}
	e.builders.New = func() any {
		return chunk.NewChunkBuilder(e.sq, e.cfg.Engine.ChunkSize, chunk.TaskIDInvalid, e.cfg.Engine.Blocking, &e.truncation)
	}
	return e, nil
}

// Start launches the Pump on its own goroutine (host.SpawnPump) and
// returns immediately; the caller must eventually call Stop.
func (e *Engine) Start() {
	e.log.Info("pump starting",
		zap.Int("chunk_size", e.cfg.Engine.ChunkSize),
		zap.Int("queue_length", e.cfg.Engine.QueueLength),
		zap.Int("rb_length", e.cfg.Engine.RingBufferLength))
	e.host.SpawnPump(e.pmp.Run)
}

// Stop clears keepRunning and blocks until the Pump goroutine has
// exited, mirroring the original engine destructor's join (spec.md
// §5 "Cancellation and shutdown").
func (e *Engine) Stop() {
	e.pmp.Stop()
	e.host.JoinPump()
	e.log.Info("pump stopped")
}

// RegisterCurrentTask assigns the calling goroutine a TaskId, or
// returns the one already on file (spec.md §6, idempotent). Returns
// chunk.TaskIDInvalid once chunk.MaxRegistered producers are
// registered; the caller's subsequent chunks are then silently
// ignored at submission time, per §7.
func (e *Engine) RegisterCurrentTask(name string) chunk.TaskID {
	handle := e.host.CurrentThreadID()
	id, ok := e.rg.Register(handle, name)
	if !ok {
		return chunk.TaskIDInvalid
	}
	return id
}

// RegisterSubsystem binds a prefix to tag, enabling NewSubsystemBuilder
// for it (§4 of SPEC_FULL, the original's registerApp).
func (e *Engine) RegisterSubsystem(tag chunk.TaskID, prefix string) {
	e.rg.RegisterSubsystem(tag, prefix)
}

// NewBuilder returns a ChunkBuilder bound to taskID, with the
// configured header already written ahead of the message body.
func (e *Engine) NewBuilder(taskID chunk.TaskID) *chunk.ChunkBuilder {
	b := chunk.NewChunkBuilder(e.sq, e.cfg.Engine.ChunkSize, taskID, e.cfg.Engine.Blocking, &e.truncation)
	e.writeHeader(b, taskID, "")
	return b
}

// NewSubsystemBuilder returns a builder carrying the prefix registered
// for tag via RegisterSubsystem, or nil if tag was never registered —
// the original's silent registerApp/send no-op, made explicit in the
// type system instead of hidden behind a null object.
func (e *Engine) NewSubsystemBuilder(tag chunk.TaskID) *chunk.ChunkBuilder {
	prefix, ok := e.rg.SubsystemPrefix(tag)
	if !ok {
		return nil
	}
	b := chunk.NewChunkBuilder(e.sq, e.cfg.Engine.ChunkSize, tag, e.cfg.Engine.Blocking, &e.truncation)
	e.writeHeader(b, tag, prefix)
	return b
}

// NewISRBuilder returns a builder tagged chunk.TaskIDISR, bypassing
// registration entirely per spec.md §6 ("ISR producers do not
// register; their chunks carry TaskId = ISR"). Submission is always
// non-blocking regardless of cfg.Engine.Blocking, since an interrupt
// context must never sleep.
func (e *Engine) NewISRBuilder() *chunk.ChunkBuilder {
	b := chunk.NewChunkBuilder(e.sq, e.cfg.Engine.ChunkSize, chunk.TaskIDISR, false, &e.truncation)
	e.writeHeader(b, chunk.TaskIDISR, "")
	return b
}

// PushFromISR enqueues a single already-built chunk via the
// wait-free-bound ISR submission path, bypassing ChunkBuilder
// entirely. Exposed for Sink completion handlers and timers that run
// in a genuine interrupt context and need to log without the
// ChunkBuilder's byte-at-a-time API.
func (e *Engine) PushFromISR(c chunk.Chunk) bool {
	return e.sq.PushFromISR(c)
}

func (e *Engine) writeHeader(b *chunk.ChunkBuilder, taskID chunk.TaskID, prefix string) {
	rep := chunk.TaskRepresentationNone
	switch e.cfg.Engine.TaskRepresentation {
	case "id":
		rep = chunk.TaskRepresentationID
	case "name":
		rep = chunk.TaskRepresentationName
	}
	isISR := taskID == chunk.TaskIDISR
	name := ""
	if rep == chunk.TaskRepresentationName && !isISR {
		name, _ = e.rg.NameByID(taskID)
	}
	opts := chunk.HeaderOptions{
		Representation:  rep,
		TaskIDFormat:    e.formats.TaskID,
		TaskName:        name,
		IsISR:           isISR,
		TickFormat:      e.formats.Tick,
		Tick:            e.host.MonotonicMillis(),
		SubsystemPrefix: prefix,
	}
	b.WriteHeader(opts)
}

func popTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Engine.PauseLengthMS) * time.Millisecond
}

// formatsFromConfig maps config.FormatsConfig onto chunk.Formats,
// leaving the per-numeric-type defaults (int8Format ... doubleFormat)
// at chunk.DefaultFormats' values and overriding only the task id and
// tick fields the engine itself emits in headers. A disabled tick
// field is represented as chunk.FormatNone (Base == 0), which
// WriteHeader treats as "omit this field" — spec.md's S1 scenario
// calls this knob noTimeField.
func formatsFromConfig(cfg *config.Config) chunk.Formats {
	f := chunk.DefaultFormats()
	f.TaskID = chunk.Format{Base: cfg.Formats.TaskIDBase, Fill: cfg.Formats.TaskIDFill}
	if cfg.Formats.TickEnabled {
		f.Tick = chunk.Format{Base: cfg.Formats.TickBase, Fill: cfg.Formats.TickFill}
	} else {
		f.Tick = chunk.FormatNone
	}
	f.AlignSigned = cfg.Formats.AlignSigned
	f.AppendBasePrefix = cfg.Formats.AppendBasePrefix
	return f
}
