package stagehand

import (
	"sync"
	"sync/atomic"
)

// ProcessState is the per-process runtime entity: a bounded mailbox of
// Deliver tasks, the acquire/release lock discipline that serializes
// handler execution, and the stopped/interrupted lifecycle flags.
//
// tryPut/tryTake/acquire/release all take the same mutex, so the
// "mailbox observed empty" check inside release happens atomically
// with the ownership flag it flips: without that, a producer could
// enqueue a task just as the owning worker decides the mailbox is
// empty and gives up ownership, and the task would sit unprocessed
// with nobody watching it (a lost wakeup).
type ProcessState struct {
	process  *Process
	capacity int

	mu      sync.Mutex
	owned   bool
	mailbox []Deliver

	stopped      atomic.Bool
	interrupted  atomic.Bool
	interruption *Signal
}

func newProcessState(process *Process, capacity int) *ProcessState {
	if capacity < 1 {
		panic("stagehand: process mailbox capacity must be >= 1")
	}
	return &ProcessState{
		process:      process,
		capacity:     capacity,
		mailbox:      make([]Deliver, 0, capacity),
		interruption: NewSignal(),
	}
}

// tryPut inserts task into the mailbox if there is room.
func (ps *ProcessState) tryPut(task Deliver) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.mailbox) >= ps.capacity {
		return false
	}
	ps.mailbox = append(ps.mailbox, task)
	return true
}

// tryTake removes and returns the head of the mailbox, if any.
func (ps *ProcessState) tryTake() (Deliver, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.mailbox) == 0 {
		return Deliver{}, false
	}
	task := ps.mailbox[0]
	ps.mailbox = ps.mailbox[1:]
	return task, true
}

// acquire attempts to claim the lock; exactly one concurrent caller
// observes true.
func (ps *ProcessState) acquire() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.owned {
		return false
	}
	ps.owned = true
	return true
}

// release is called by the current owner. It returns true once the
// mailbox is confirmed empty and ownership is truly released; it
// returns false when a producer inserted a task between the caller
// observing an empty mailbox and this call, in which case the caller
// remains owner and must keep draining.
func (ps *ProcessState) release() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.mailbox) == 0 {
		ps.owned = false
		return true
	}
	return false
}

// stop transitions stopped false→true exactly once, reporting whether
// this call effected the transition.
func (ps *ProcessState) stop() bool {
	return ps.stopped.CompareAndSwap(false, true)
}

// interrupt raises interrupted and completes the interruption signal.
// Idempotent.
func (ps *ProcessState) interrupt() {
	ps.interrupted.Store(true)
	ps.interruption.Complete()
}

func (ps *ProcessState) isStopped() bool     { return ps.stopped.Load() }
func (ps *ProcessState) isInterrupted() bool { return ps.interrupted.Load() }
