package stagehand

import "sync"

// Produce builds the initial Handler for a freshly registered
// process. It runs at most once per Process.
type Produce func() Handler

// Process is a ref, a name, and a handler. The handler is produced
// lazily (memoized on first access via Handle) and can be replaced
// atomically at any time via Switch — the mechanism a handler body
// uses to move a process through a small state machine (see the
// handler-switch scenario in the package tests).
type Process struct {
	ref     ProcessRef
	name    string
	produce Produce

	once    sync.Once
	mu      sync.Mutex
	current Handler
}

// NewProcess builds a Process identified by ref, with produce called
// at most once to materialize its first Handler.
func NewProcess(ref ProcessRef, name string, produce Produce) *Process {
	if produce == nil {
		panic("stagehand: produce cannot be nil")
	}
	return &Process{ref: ref, name: name, produce: produce}
}

// Ref returns the process's identity.
func (p *Process) Ref() ProcessRef { return p.ref }

// Name returns the process's human-readable name.
func (p *Process) Name() string { return p.name }

// Handle returns the process's current Handler, materializing it from
// produce on first access.
func (p *Process) Handle() Handler {
	p.once.Do(func() {
		p.mu.Lock()
		p.current = p.produce()
		p.mu.Unlock()
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Switch atomically replaces the process's current handler. Pending
// mailbox entries not yet handled will be dispatched to the new
// handler.
func (p *Process) Switch(h Handler) {
	// Ensure produce has run (and won't clobber h) before installing
	// the replacement — Switch is meaningless before a first Handle.
	p.once.Do(func() {
		p.mu.Lock()
		p.current = p.produce()
		p.mu.Unlock()
	})
	p.mu.Lock()
	p.current = h
	p.mu.Unlock()
}
