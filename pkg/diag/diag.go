// Package diag provides a periodic, read-only snapshot of engine
// health — SQ depth, RB count, TX chunk count, splice counter,
// truncation-pending flag, inFlight/refreshNeeded state — encoded with
// github.com/fxamacker/cbor/v2 for compact out-of-band export. This
// is diagnostics about the engine, not a structured alternative to
// the byte-stream message format the core emits: spec.md's non-goal
// "structured/keyed records" governs the multiplexed payload, not
// operational telemetry about it.
//
// Grounded on the teacher's pkg/registry/store.go JSON-document
// snapshot idea, re-expressed with CBOR, tagged with a per-process
// run identifier (github.com/google/uuid, as mama165-chat-lab uses
// it) and a stable host identifier (github.com/denisbrodbeck/
// machineid, as robotalks-robo.go's env.MachineID uses it).
package diag

import (
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nowtech-go/logmux/pkg/engine"
)

// Snapshot is one point-in-time view of engine.Stats, enriched with
// the identifiers needed to attribute it to a process and a host once
// exported off-device.
type Snapshot struct {
	RunID     string    `cbor:"run_id"`
	HostID    string    `cbor:"host_id,omitempty"`
	Timestamp time.Time `cbor:"ts"`

	QueueLen            int    `cbor:"queue_len"`
	QueueCap            int    `cbor:"queue_cap"`
	RingCount           int    `cbor:"ring_count"`
	RingCap             int    `cbor:"ring_cap"`
	FillChunkCount      int    `cbor:"fill_chunk_count"`
	InFlight            bool   `cbor:"in_flight"`
	RefreshNeeded       bool   `cbor:"refresh_needed"`
	SpliceCount         uint64 `cbor:"splice_count"`
	TruncationPending   bool   `cbor:"truncation_pending"`
	RegisteredTaskCount int    `cbor:"registered_task_count"`
}

// Reporter periodically snapshots an Engine's Stats and hands the
// CBOR-encoded bytes to a sink function (a file, a UDP datagram, a
// channel — diag itself is transport-agnostic). It is also where the
// engine's own operational events surface as logs: the Pump never logs
// from its own goroutine (that would put a zap call on the hot path),
// so the Reporter diffs consecutive snapshots and logs the
// drops/splices/sink-stalls SPEC_FULL.md §1 promises, the same way it
// already turns raw counters into a CBOR document.
type Reporter struct {
	e      *engine.Engine
	runID  string
	hostID string
	log    *zap.Logger

	mode cbor.EncMode

	prevSplice     uint64
	prevTruncation bool
	stallStreak    int

	stop chan struct{}
	done chan struct{}
}

// stallThreshold is the number of consecutive snapshots Stats.InFlight
// must read true before Run logs a sink stall warning, so a sink that
// merely takes longer than one diag period to drain doesn't trip it.
const stallThreshold = 3

// NewReporter builds a Reporter with a fresh per-process run id and,
// where available, a stable per-host id. machineid failures (common
// in containers without the usual host identity files) are tolerated
// — HostID is simply left empty rather than failing construction,
// since diagnostics are best-effort by nature. A nil log is replaced
// with zap.NewNop(), matching engine.New's own convention.
func NewReporter(e *engine.Engine, log *zap.Logger) (*Reporter, error) {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	hostID, _ := machineid.ID()
	return &Reporter{
		e:      e,
		runID:  uuid.NewString(),
		hostID: hostID,
		log:    log,
		mode:   mode,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Snapshot takes one Stats reading and returns it CBOR-encoded.
func (r *Reporter) Snapshot() ([]byte, error) {
	s := r.e.Stats()
	return r.mode.Marshal(Snapshot{
		RunID:               r.runID,
		HostID:              r.hostID,
		Timestamp:           time.Now(),
		QueueLen:            s.QueueLen,
		QueueCap:            s.QueueCap,
		RingCount:           s.RingCount,
		RingCap:             s.RingCap,
		FillChunkCount:      s.FillChunkCount,
		InFlight:            s.InFlight,
		RefreshNeeded:       s.RefreshNeeded,
		SpliceCount:         s.SpliceCount,
		TruncationPending:   s.TruncationPending,
		RegisteredTaskCount: s.RegisteredTaskCount,
	})
}

// Run takes a Snapshot every period and hands the encoded bytes to
// emit, until Stop is called. Meant to run on its own goroutine.
func (r *Reporter) Run(period time.Duration, emit func([]byte)) {
	defer close(r.done)
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			s := r.e.Stats()
			r.logTransitions(s)
			b, err := r.Snapshot()
			if err != nil {
				continue
			}
			emit(b)
		}
	}
}

// logTransitions compares s against the previous snapshot and logs the
// edge-triggered operational events the engine promises to report:
// drops (a chunk lost to a full, non-blocking queue, surfaced via
// chunk.TruncationFlag), splices (the Pump's ring-full overload release
// valve firing) and sink stalls (an arena stuck in-flight across
// several consecutive periods).
func (r *Reporter) logTransitions(s engine.Stats) {
	if s.SpliceCount != r.prevSplice {
		r.log.Warn("pump spliced ring head into transmit arena",
			zap.Uint64("splice_count", s.SpliceCount),
			zap.Uint64("delta", s.SpliceCount-r.prevSplice))
		r.prevSplice = s.SpliceCount
	}
	if s.TruncationPending && !r.prevTruncation {
		r.log.Warn("chunk dropped: submission queue was full")
	}
	r.prevTruncation = s.TruncationPending

	if s.InFlight {
		r.stallStreak++
		if r.stallStreak == stallThreshold {
			r.log.Warn("sink appears stalled", zap.Int("consecutive_periods", r.stallStreak))
		}
	} else {
		r.stallStreak = 0
	}
}

// Stop asks Run to exit and waits for it to do so.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}
