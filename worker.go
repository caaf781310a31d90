package stagehand

import (
	"context"
	"fmt"
)

// Worker drains the ready queue: acquire a process, run its mailbox
// to empty (the acquire/release race-free idiom in process_state.go
// decides when "empty" really means idle), release, repeat.
type Worker struct {
	id          int
	ctx         *Context
	ready       *BoundedQueue[ProcessRef]
	interpreter *Interpreter
	logger      Logger
}

func newWorker(id int, ctx *Context, ready *BoundedQueue[ProcessRef], interpreter *Interpreter, logger Logger) *Worker {
	return &Worker{id: id, ctx: ctx, ready: ready, interpreter: interpreter, logger: logger}
}

// Run processes ready refs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		ref, err := w.ready.Dequeue(ctx)
		if err != nil {
			return err
		}
		ps, ok := w.ctx.GetProcessState(ref)
		if !ok {
			// Process was removed between publish and pop; the ready
			// queue is allowed to carry stale refs.
			continue
		}
		if !ps.acquire() {
			// Another worker already owns it, or this is a duplicate
			// ready-queue entry from an enqueue-during-release race.
			continue
		}
		w.drain(ctx, ref, ps)
	}
}

func (w *Worker) drain(ctx context.Context, ref ProcessRef, ps *ProcessState) {
	for {
		task, ok := ps.tryTake()
		if !ok {
			if ps.release() {
				return
			}
			continue
		}
		if terminated := w.handleDelivery(ctx, task.Envelope, ref, ps); terminated {
			// Stop is always the last event a process handles; the
			// lock is never released (see finalizeStop), so draining
			// further would just be processing a removed process.
			return
		}
	}
}

// handleDelivery runs one envelope through the delivery state machine:
// a terminating Stop first, then stopped/interrupted checks, then the
// handler if one is defined, then the Failure/Start/unmatched fallback.
// Order matters — a stopped or interrupted process must never reach
// its handler again. It reports whether ref was just terminated by
// this delivery.
func (w *Worker) handleDelivery(ctx context.Context, env Envelope, ref ProcessRef, ps *ProcessState) bool {
	if _, isStop := env.Event.(Stop); isStop && ps.stop() {
		finalizeStop(ctx, w.ctx, w.interpreter, w.logger, ref, ps)
		return true
	}

	if ps.isStopped() {
		w.deadLetter(ctx, env, IllegalStateError{Reason: "stopped"})
		return false
	}
	if ps.isInterrupted() {
		w.deadLetter(ctx, env, IllegalStateError{Reason: "terminated"})
		return false
	}

	process, ok := w.ctx.GetProcess(ref)
	if !ok {
		w.deadLetter(ctx, env, UnknownProcessError{Ref: ref})
		return false
	}

	handler := process.Handle()
	if handler.Defined(env.Event) {
		w.runHandler(ctx, handler, env, ps)
		return false
	}

	switch failure := env.Event.(type) {
	case Failure:
		w.deadLetter(ctx, env, failure.Cause)
	case Start:
		// no handler for Start: ignored.
	default:
		w.deadLetter(ctx, env, EventMatchError{Envelope: env})
	}
	return false
}

// runHandler interprets handler's flow for env and races it against
// the process's interruption signal. If the handler's effect raises,
// handleError decides where the failure goes. If the process is
// interrupted mid-flight, the effect is cancelled and the envelope is
// dropped — the Stop enqueued by Kill will finish the process.
func (w *Worker) runHandler(ctx context.Context, handler Handler, env Envelope, ps *ProcessState) {
	flow := handler.Apply(env.Event)
	state := FlowState{Sender: env.Sender, Self: env.Receiver}
	effect := w.interpreter.Interpret(flow, state)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("stagehand: panic in handler: %v", r)
			}
		}()
		done <- effect.Run(runCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			w.handleError(ctx, env, err)
		}
	case <-ps.interruption.Done():
		cancel()
		w.logger.Printf("stagehand: process %q has been interrupted", env.Receiver)
	}
}

// handleError escalates to dead-letter if the event being handled was
// itself a Failure (so error handling can never loop back on itself),
// otherwise reports a Failure back to the original sender.
func (w *Worker) handleError(ctx context.Context, env Envelope, cause error) {
	if _, isFailure := env.Event.(Failure); isFailure {
		w.deadLetter(ctx, env, EventHandlingError{Cause: cause})
		return
	}
	failure := Failure{Envelope: env, Cause: EventHandlingError{Cause: cause}}
	if err := w.ctx.Enqueue(ctx, Envelope{Sender: SystemRef, Event: failure, Receiver: env.Sender}); err != nil {
		w.logger.Printf("stagehand: dropping failure report to %q, scheduler shutting down: %v", env.Sender, err)
	}
}

// deadLetter routes env to DeadLetterRef, tagged with cause. A
// DeadLetter is never itself dead-lettered: if the envelope that
// failed was already addressed to DeadLetterRef, this drops it with a
// log line instead of recursing.
func (w *Worker) deadLetter(ctx context.Context, env Envelope, cause error) {
	if env.Receiver == DeadLetterRef {
		w.logger.Printf("stagehand: dropping undeliverable dead-letter cascade for %v: %v", env, cause)
		return
	}
	dead := DeadLetter{Envelope: env, Cause: cause}
	if err := w.ctx.Enqueue(ctx, Envelope{Sender: SystemRef, Event: dead, Receiver: DeadLetterRef}); err != nil {
		w.logger.Printf("stagehand: dropping dead-letter for %v: %v", env, err)
	}
}
