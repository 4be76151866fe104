package engine

import "github.com/nowtech-go/logmux/pkg/chunk"

// Fluent is the operator<<-chaining call style of the original's
// LogShiftChainHelper, backed by a ChunkBuilder drawn from Engine's
// pooled staging slots (spec.md §5's "optional per-producer staging
// area: 256 x K bytes when the fluent-style API is enabled"). Not
// safe for concurrent use; it is claimed, filled and released by one
// goroutine inside one call chain.
type Fluent struct {
	e *Engine
	b *chunk.ChunkBuilder
}

// Fluent claims a pooled ChunkBuilder for taskID and writes the
// configured header, ready for a chain of Str/Int32/.../End calls. It
// returns nil when the fluent API is disabled (config.EngineConfig.
// EnableFluentAPI == false) — callers are expected to guard with an
// if, exactly like the original's macro-gated log statements compile
// to nothing when logging is off.
func (e *Engine) Fluent(taskID chunk.TaskID) *Fluent {
	if !e.cfg.Engine.EnableFluentAPI {
		return nil
	}
	b := e.builders.Get().(*chunk.ChunkBuilder)
	b.Rebind(taskID)
	e.writeHeader(b, taskID, "")
	return &Fluent{e: e, b: b}
}

// Str appends s verbatim.
func (f *Fluent) Str(s string) *Fluent {
	f.b.WriteString(s)
	return f
}

// Int32 appends v using the engine's configured Int32 format.
func (f *Fluent) Int32(v int32) *Fluent {
	fm := f.e.formats
	f.b.AppendInt(v, fm.Int32, fm.AppendBasePrefix, fm.AlignSigned)
	return f
}

// Uint32 appends v using the engine's configured Uint32 format.
func (f *Fluent) Uint32(v uint32) *Fluent {
	fm := f.e.formats
	f.b.AppendUint(v, fm.Uint32, fm.AppendBasePrefix)
	return f
}

// Bool appends "true" or "false".
func (f *Fluent) Bool(v bool) *Fluent {
	f.b.AppendBool(v)
	return f
}

// Float64 appends v using the engine's configured Double format's
// significant-digit count.
func (f *Fluent) Float64(v float64) *Fluent {
	fm := f.e.formats
	f.b.AppendFloat(v, fm.Double.Fill, fm.AlignSigned)
	return f
}

// End flushes the message (writing the terminating '\n' and submitting
// the final, possibly partial chunk) and returns the staging builder
// to the pool for the next caller.
func (f *Fluent) End() {
	f.b.Flush()
	f.e.builders.Put(f.b)
}
