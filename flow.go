package stagehand

import "time"

// Flow is a tagged-variant AST node. A Handler's Apply returns a Flow;
// Interpreter.Interpret folds it into a cancellable Effect. Build Flow
// values with the constructors below rather than the unexported node
// types directly.
type Flow interface {
	isFlow()
}

type unitFlow struct{}

func (unitFlow) isFlow() {}

// Unit is a no-op flow.
func Unit() Flow { return unitFlow{} }

type seqFlow struct{ steps []Flow }

func (seqFlow) isFlow() {}

// Seq runs steps in order, stopping at the first error.
func Seq(steps ...Flow) Flow { return seqFlow{steps: steps} }

type sendFlow struct {
	event     Event
	receivers []ProcessRef
}

func (sendFlow) isFlow() {}

// Send enqueues event toward each receiver, in order, with the
// current process as sender.
func Send(event Event, receivers ...ProcessRef) Flow {
	return sendFlow{event: event, receivers: receivers}
}

type forwardFlow struct {
	event     Event
	receivers []ProcessRef
}

func (forwardFlow) isFlow() {}

// Forward is like Send, but the envelope carries the original sender
// of the event currently being handled.
func Forward(event Event, receivers ...ProcessRef) Flow {
	return forwardFlow{event: event, receivers: receivers}
}

type parFlow struct{ children []Flow }

func (parFlow) isFlow() {}

// Par runs children concurrently, completing when all have completed.
func Par(children ...Flow) Flow { return parFlow{children: children} }

type forkFlow struct{ child Flow }

func (forkFlow) isFlow() {}

// Fork spawns child concurrently and returns immediately.
func Fork(child Flow) Flow { return forkFlow{child: child} }

type raceFlow struct{ a, b Flow }

func (raceFlow) isFlow() {}

// Race runs a and b concurrently; whichever completes first cancels
// the other.
func Race(a, b Flow) Flow { return raceFlow{a: a, b: b} }

type delayFlow struct {
	duration time.Duration
	child    Flow
}

func (delayFlow) isFlow() {}

// Delay sleeps for d, then (if child is non-nil) runs child.
func Delay(d time.Duration, child Flow) Flow {
	return delayFlow{duration: d, child: child}
}

type withSenderFlow struct{ f func(ProcessRef) Flow }

func (withSenderFlow) isFlow() {}

// WithSender produces and runs f applied to the current sender.
func WithSender(f func(sender ProcessRef) Flow) Flow {
	return withSenderFlow{f: f}
}

type invokeFlow struct {
	caller, callee ProcessRef
	body           Flow
}

func (invokeFlow) isFlow() {}

// Invoke runs body with a FlowState of (caller, callee) instead of the
// enclosing handler's own (sender, self).
func Invoke(caller, callee ProcessRef, body Flow) Flow {
	return invokeFlow{caller: caller, callee: callee, body: body}
}

type registerFlow struct {
	parent ProcessRef
	child  *Process
}

func (registerFlow) isFlow() {}

// Register registers child as a child of parent, using the
// scheduler's configured per-process mailbox size.
func Register(parent ProcessRef, child *Process) Flow {
	return registerFlow{parent: parent, child: child}
}

type suspendFlow struct {
	thunk func() (any, error)
	bind  func(any) Flow
}

func (suspendFlow) isFlow() {}

// Suspend lifts an external (possibly failing) effect; its result is
// discarded (use SuspendWith to continue with it).
func Suspend(thunk func() (any, error)) Flow {
	return suspendFlow{thunk: thunk}
}

// SuspendWith is Suspend with a continuation over the thunk's result.
func SuspendWith(thunk func() (any, error), bind func(any) Flow) Flow {
	return suspendFlow{thunk: thunk, bind: bind}
}

type evalFlow struct {
	thunk func() any
	bind  func(any) Flow
}

func (evalFlow) isFlow() {}

// Eval lifts a pure computation; its result is discarded (use EvalWith
// to continue with it).
func Eval(thunk func() any) Flow {
	return evalFlow{thunk: thunk}
}

// EvalWith is Eval with a continuation over the thunk's result.
func EvalWith(thunk func() any, bind func(any) Flow) Flow {
	return evalFlow{thunk: thunk, bind: bind}
}
