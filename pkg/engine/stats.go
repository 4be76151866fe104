package engine

// Stats is a read-only snapshot of engine health, for diagnostics
// (pkg/diag). It touches nothing the Pump exclusively owns beyond
// what the read-only accessors on each component already expose.
type Stats struct {
	QueueLen, QueueCap      int
	RingCount, RingCap      int
	FillChunkCount          int
	InFlight, RefreshNeeded bool
	SpliceCount             uint64
	TruncationPending       bool
	RegisteredTaskCount     int
}

// Stats gathers a Stats snapshot. Safe to call concurrently with the
// running Pump: every value behind these accessors is either an
// atomic (pkg/reorder's count, pkg/transmit's chunkCount/write,
// pkg/pump's spliceCount, pkg/chunk's truncation flag) or a field set
// once at construction and never mutated after (queue/ring capacity).
// RB and TX remain exclusively owned by the Pump for mutation; this
// only adds a read-only, diagnostics-only observation path onto them.
func (e *Engine) Stats() Stats {
	return Stats{
		QueueLen:            e.sq.Len(),
		QueueCap:            e.sq.Cap(),
		RingCount:           e.rb.Count(),
		RingCap:             e.rb.Cap(),
		FillChunkCount:      e.tx.FillChunkCount(),
		InFlight:            e.tx.InFlight(),
		RefreshNeeded:       e.tx.RefreshNeeded(),
		SpliceCount:         e.pmp.SpliceCount(),
		TruncationPending:   e.truncation.Pending(),
		RegisteredTaskCount: e.rg.Count(),
	}
}
