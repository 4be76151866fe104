package pump

import (
	"testing"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

// fakeRing lets each test script exactly the Ring responses and
// record which mutating calls happened, independent of the real
// CircularReorder's bookkeeping.
type fakeRing struct {
	empty, full, inspected bool

	fetchResult  chunk.Chunk
	peekResult   chunk.Chunk
	inspectInput chunk.TaskID
	inspectSets  bool // IsInspected() value to report right after Inspect is called

	popCalled, keepFetchedCalled, removeFoundCalled, clearInspectedCalled int
}

func (r *fakeRing) IsEmpty() bool     { return r.empty }
func (r *fakeRing) IsFull() bool      { return r.full }
func (r *fakeRing) IsInspected() bool { return r.inspected }
func (r *fakeRing) ClearInspected()   { r.clearInspectedCalled++; r.inspected = false }
func (r *fakeRing) Fetch() chunk.Chunk {
	return r.fetchResult
}
func (r *fakeRing) Peek() chunk.Chunk { return r.peekResult }
func (r *fakeRing) Pop()              { r.popCalled++ }
func (r *fakeRing) KeepFetched()      { r.keepFetchedCalled++ }
func (r *fakeRing) Inspect(target chunk.TaskID) chunk.Chunk {
	r.inspectInput = target
	r.inspected = r.inspectSets
	if r.inspected {
		return chunk.Chunk(nil)
	}
	return r.peekResult
}
func (r *fakeRing) RemoveFound() { r.removeFoundCalled++ }

type fakeTransmit struct {
	hasActive              bool
	activeID               chunk.TaskID
	terminal               bool
	appended               []chunk.Chunk
	transmitIfNeededCalled int
}

func (t *fakeTransmit) HasActiveTask() bool           { return t.hasActive }
func (t *fakeTransmit) GetActiveTaskID() chunk.TaskID { return t.activeID }
func (t *fakeTransmit) GotTerminalChunk() bool        { return t.terminal }
func (t *fakeTransmit) Append(c chunk.Chunk)          { t.appended = append(t.appended, c) }
func (t *fakeTransmit) TransmitIfNeeded()             { t.transmitIfNeededCalled++ }

func mk(tag chunk.TaskID) chunk.Chunk { return chunk.New(4, tag) }

func TestStepStartsNewMessageFromFetchWhenRingEmpty(t *testing.T) {
	rb := &fakeRing{empty: true, fetchResult: mk(1)}
	tx := &fakeTransmit{hasActive: false}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 1 || tx.appended[0].Tag() != chunk.TaskID(1) {
		t.Fatalf("expected the fetched chunk appended, got %v", tx.appended)
	}
	if tx.transmitIfNeededCalled != 1 {
		t.Fatalf("expected TransmitIfNeeded called once per step")
	}
}

func TestStepPrefersRingHeadOverFetchWhenStartingNewMessage(t *testing.T) {
	rb := &fakeRing{empty: false, peekResult: mk(2)}
	tx := &fakeTransmit{hasActive: false}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 1 || tx.appended[0].Tag() != chunk.TaskID(2) {
		t.Fatalf("expected the ring's oldest chunk appended, got %v", tx.appended)
	}
	if rb.popCalled != 1 {
		t.Fatalf("expected Pop called once, got %d", rb.popCalled)
	}
}

func TestStepContinuingActiveTaskFromFetchMatch(t *testing.T) {
	rb := &fakeRing{empty: true, fetchResult: mk(5)}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 1 {
		t.Fatalf("expected the matching fetched chunk appended")
	}
	if rb.keepFetchedCalled != 0 {
		t.Fatalf("a matching fetch must not be parked in the ring")
	}
}

func TestStepContinuingActiveTaskParksForeignFetch(t *testing.T) {
	rb := &fakeRing{empty: true, fetchResult: mk(9)}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 0 {
		t.Fatalf("a foreign chunk must not be appended to the active task's stream")
	}
	if rb.keepFetchedCalled != 1 {
		t.Fatalf("expected the foreign chunk parked via KeepFetched")
	}
}

func TestStepContinuingActiveTaskInvalidFetchIsNoOp(t *testing.T) {
	rb := &fakeRing{empty: true, fetchResult: chunk.New(4, chunk.TaskIDInvalid)}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 0 || rb.keepFetchedCalled != 0 {
		t.Fatalf("a timed-out fetch must neither append nor commit to the ring")
	}
}

func TestStepInspectFindsMatchRemovesFound(t *testing.T) {
	rb := &fakeRing{empty: false, full: false, inspected: false, inspectSets: false, peekResult: mk(5)}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if rb.inspectInput != chunk.TaskID(5) {
		t.Fatalf("expected Inspect called with the active task id")
	}
	if len(tx.appended) != 1 {
		t.Fatalf("expected the found chunk appended")
	}
	if rb.removeFoundCalled != 1 {
		t.Fatalf("expected RemoveFound called after a successful inspect")
	}
}

func TestStepInspectExhaustsWithoutAppending(t *testing.T) {
	rb := &fakeRing{empty: false, full: false, inspected: false, inspectSets: true}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 0 {
		t.Fatalf("an exhausted inspect must not append anything")
	}
	if rb.removeFoundCalled != 0 {
		t.Fatalf("an exhausted inspect must not call RemoveFound")
	}
}

func TestStepUsesFetchWhenAlreadyInspected(t *testing.T) {
	rb := &fakeRing{empty: false, full: false, inspected: true, fetchResult: mk(5)}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 1 {
		t.Fatalf("once inspected, the pump should fall back to fetch, not re-inspect")
	}
}

func TestStepFullRingSplicesHeadAndClearsInspected(t *testing.T) {
	rb := &fakeRing{empty: false, full: true, peekResult: mk(7)}
	tx := &fakeTransmit{hasActive: true, activeID: chunk.TaskID(5)}
	p := New(rb, tx)
	p.step()
	if len(tx.appended) != 1 || tx.appended[0].Tag() != chunk.TaskID(7) {
		t.Fatalf("expected the ring head spliced in, got %v", tx.appended)
	}
	if rb.popCalled != 1 {
		t.Fatalf("expected Pop called to discard the spliced head")
	}
	if rb.clearInspectedCalled != 1 {
		t.Fatalf("expected ClearInspected called once after splicing")
	}
}

func TestStepClearsInspectedOnTerminalChunk(t *testing.T) {
	rb := &fakeRing{empty: true, fetchResult: mk(1)}
	tx := &fakeTransmit{hasActive: false, terminal: true}
	p := New(rb, tx)
	p.step()
	if rb.clearInspectedCalled != 1 {
		t.Fatalf("expected ClearInspected called once a terminal chunk was appended")
	}
}

func TestStopEndsRun(t *testing.T) {
	rb := &fakeRing{empty: true, fetchResult: chunk.New(4, chunk.TaskIDInvalid)}
	tx := &fakeTransmit{}
	p := New(rb, tx)
	done := make(chan struct{})
	go func() {
		p.Run()
		close(done)
	}()
	p.Stop()
	<-done
}
