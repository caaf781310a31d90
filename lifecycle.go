package stagehand

import (
	"context"
	"runtime"
)

// stopChildren stops every direct child of ref, recursively and
// concurrently, waiting for all of them before returning. Shared by
// the worker's Stop delivery branch (via stopProcess) and the
// scheduler's shutdown finalizer so the cascade logic lives in exactly
// one place instead of being duplicated per call site.
func stopChildren(ctx context.Context, c *Context, interpreter *Interpreter, logger Logger, ref ProcessRef) {
	children := c.Children(ref)
	if len(children) == 0 {
		return
	}
	done := make(chan struct{}, len(children))
	for _, child := range children {
		child := child
		go func() {
			defer func() { done <- struct{}{} }()
			stopProcess(ctx, c, interpreter, logger, child)
		}()
	}
	for range children {
		<-done
	}
}

// stopProcess stops ref from outside its owning worker: it waits to
// acquire ref's lock (so it never races a worker currently draining
// the same mailbox, preserving the "at most one owner" invariant),
// then runs the same finalize sequence a worker runs inline when it
// dequeues a Stop envelope it already owns the lock for. Used for the
// recursive child cascade and for the scheduler's full-tree shutdown
// against SystemRef.
func stopProcess(ctx context.Context, c *Context, interpreter *Interpreter, logger Logger, ref ProcessRef) {
	ps, ok := c.GetProcessState(ref)
	if !ok {
		// SystemRef itself, or an already-removed process: just
		// cascade into whatever children are still registered.
		stopChildren(ctx, c, interpreter, logger, ref)
		return
	}
	if !ps.stop() {
		return // already stopped, or being stopped by someone else
	}

	for !ps.acquire() {
		select {
		case <-ctx.Done():
			return
		default:
			// The owning worker is mid-delivery; yield instead of
			// spinning hot while we wait for it to release.
			runtime.Gosched()
		}
	}

	finalizeStop(ctx, c, interpreter, logger, ref, ps)
}

// finalizeStop assumes the caller already owns ps's lock (either by
// having dequeued the Stop envelope through the normal ready-queue
// path, or via stopProcess's blocking acquire above). It stops ref's
// children first, gives the handler a chance to react to Stop if one
// is defined, and only then removes ref from the registry — children
// must finish reacting to their own Stop before the parent disappears.
// The lock is deliberately never released afterward: ref is gone from
// the registry, so nothing will ever look it up again.
func finalizeStop(ctx context.Context, c *Context, interpreter *Interpreter, logger Logger, ref ProcessRef, ps *ProcessState) {
	stopChildren(ctx, c, interpreter, logger, ref)

	if process, ok := c.GetProcess(ref); ok {
		handler := process.Handle()
		stopEnv := Envelope{Sender: SystemRef, Event: Stop{}, Receiver: ref}
		if handler.Defined(stopEnv.Event) {
			runStopHandler(ctx, interpreter, logger, handler, stopEnv)
		}
	}
	c.Remove(ref)
}

// runStopHandler interprets a process's reaction to its own
// finalizing Stop. There is no interruption race here (the process is
// already terminating), so panics are simply recovered and logged.
func runStopHandler(ctx context.Context, interpreter *Interpreter, logger Logger, handler Handler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("stagehand: panic in Stop handler for %q: %v", env.Receiver, r)
		}
	}()
	flow := handler.Apply(env.Event)
	state := FlowState{Sender: env.Sender, Self: env.Receiver}
	if err := interpreter.Interpret(flow, state).Run(ctx); err != nil {
		logger.Printf("stagehand: Stop handler for %q raised: %v", env.Receiver, err)
	}
}
