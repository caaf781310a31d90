package stagehand

import (
	"context"
	"fmt"
	"sync"
)

// Context is the process registry: a ProcessRef → ProcessState/Process
// mapping, the parent→children graph rooted at SystemRef, and the
// single global task queue.
type Context struct {
	mu        sync.RWMutex
	states    map[ProcessRef]*ProcessState
	processes map[ProcessRef]*Process
	parentOf  map[ProcessRef]ProcessRef
	children  map[ProcessRef]map[ProcessRef]struct{}

	taskQueue        *BoundedQueue[Deliver]
	processQueueSize int
	logger           Logger
}

func newContext(queueSize, processQueueSize int, logger Logger) *Context {
	return &Context{
		states:           make(map[ProcessRef]*ProcessState),
		processes:        make(map[ProcessRef]*Process),
		parentOf:         make(map[ProcessRef]ProcessRef),
		children:         make(map[ProcessRef]map[ProcessRef]struct{}),
		taskQueue:        NewBoundedQueue[Deliver](queueSize),
		processQueueSize: processQueueSize,
		logger:           logger,
	}
}

// Register links process as a child of parent and starts its
// lifecycle: a synthetic Start envelope is enqueued before Register
// returns. Registering the same (parent, process.Ref()) pair twice is
// a no-op. Registering process.Ref() under a different parent, or in
// a way that would create a cycle in the parent/children tree, is a
// programming error and panics.
func (c *Context) Register(ctx context.Context, parent ProcessRef, process *Process) error {
	ref := process.Ref()

	c.mu.Lock()
	if existingParent, ok := c.parentOf[ref]; ok {
		c.mu.Unlock()
		if existingParent == parent {
			return nil // idempotent re-registration
		}
		panic(fmt.Sprintf("stagehand: process %q already registered under a different parent", ref))
	}
	if c.isAncestor(ref, parent) {
		c.mu.Unlock()
		panic(fmt.Sprintf("stagehand: registering %q under %q would create a cycle", ref, parent))
	}

	c.states[ref] = newProcessState(process, c.processQueueSize)
	c.processes[ref] = process
	c.parentOf[ref] = parent
	if c.children[parent] == nil {
		c.children[parent] = make(map[ProcessRef]struct{})
	}
	c.children[parent][ref] = struct{}{}
	c.mu.Unlock()

	return c.Enqueue(ctx, Envelope{Sender: SystemRef, Event: Start{}, Receiver: ref})
}

// isAncestor reports whether ref is candidate itself or an ancestor of
// candidate, walking candidate's parent chain. Must be called with c.mu
// held.
func (c *Context) isAncestor(ref, candidate ProcessRef) bool {
	cur := candidate
	for {
		if cur == ref {
			return true
		}
		parent, ok := c.parentOf[cur]
		if !ok {
			return false
		}
		if parent == cur {
			return false
		}
		cur = parent
	}
}

// GetProcessState looks up the runtime state for ref.
func (c *Context) GetProcessState(ref ProcessRef) (*ProcessState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ps, ok := c.states[ref]
	return ps, ok
}

// GetProcess looks up the authoring-level Process for ref.
func (c *Context) GetProcess(ref ProcessRef) (*Process, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.processes[ref]
	return p, ok
}

// Children returns a point-in-time snapshot of ref's children.
func (c *Context) Children(ref ProcessRef) []ProcessRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.children[ref]
	out := make([]ProcessRef, 0, len(set))
	for child := range set {
		out = append(out, child)
	}
	return out
}

// Remove drops ref from the registry and from its parent's children
// set. Idempotent.
func (c *Context) Remove(ref ProcessRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, ref)
	delete(c.processes, ref)
	delete(c.children, ref)
	if parent, ok := c.parentOf[ref]; ok {
		if siblings, ok := c.children[parent]; ok {
			delete(siblings, ref)
		}
		delete(c.parentOf, ref)
	}
}

// Interrupt raises ref's interruption signal, if it is registered.
func (c *Context) Interrupt(ref ProcessRef) {
	if ps, ok := c.GetProcessState(ref); ok {
		ps.interrupt()
	}
}

// Enqueue submits env as a Deliver task on the global task queue,
// blocking until there is room or ctx is done. Runtime-generated
// envelopes (Start, Kill's Stop, Failure, a worker's DeadLetter) and
// every user send/forward flow primitive go through it; the routing
// loop's own dead-letters (unknown receiver, full mailbox) are placed
// directly in the dead-letter mailbox instead.
func (c *Context) Enqueue(ctx context.Context, env Envelope) error {
	return c.taskQueue.Enqueue(ctx, Deliver{Envelope: env})
}
