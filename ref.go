package stagehand

import "github.com/google/uuid"

// ProcessRef is a stable, value-equal identifier of a process.
type ProcessRef struct {
	id string
}

// String returns the ref's textual form.
func (r ProcessRef) String() string { return r.id }

// IsZero reports whether r is the zero ProcessRef (no process named).
func (r ProcessRef) IsZero() bool { return r.id == "" }

// NewProcessRef mints a fresh, collision-free process ref.
func NewProcessRef() ProcessRef {
	return ProcessRef{id: uuid.NewString()}
}

// NamedProcessRef builds a ref from a caller-supplied stable name.
// Two calls with the same name produce value-equal refs, which is how
// tests and examples address well-known processes without threading
// a *ProcessRef through the whole program.
func NamedProcessRef(name string) ProcessRef {
	return ProcessRef{id: name}
}

// SystemRef is the synthetic sender used for runtime-generated
// envelopes (Start, Failure reports, dead-letters) and the implicit
// root of the parent/children graph. The Stop scheduled by a Kill
// carries the Kill's own sender instead.
var SystemRef = NamedProcessRef("system")

// DeadLetterRef is the well-known receiver for undeliverable
// envelopes. A process is always registered for it (a default no-op
// unless the caller overrides it via Config.DeadLetterHandler).
var DeadLetterRef = NamedProcessRef("deadletter")
