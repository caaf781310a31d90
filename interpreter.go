package stagehand

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// FlowState carries the (sender, self) pair a Flow is interpreted
// under. Invoke and WithSender are the two primitives that change or
// consult it mid-flow.
type FlowState struct {
	Sender ProcessRef
	Self   ProcessRef
}

// Interpreter folds a Flow + FlowState into an Effect. It only needs a
// Context, since every primitive either enqueues onto the global task
// queue, registers a process, or is a pure/local computation.
type Interpreter struct {
	ctx    *Context
	logger Logger
}

// NewInterpreter builds an Interpreter bound to ctx.
func NewInterpreter(ctx *Context, logger Logger) *Interpreter {
	return &Interpreter{ctx: ctx, logger: logger}
}

// Interpret folds flow into a cancellable Effect under state.
func (ip *Interpreter) Interpret(flow Flow, state FlowState) Effect {
	switch f := flow.(type) {
	case unitFlow:
		return EffectFunc(func(ctx context.Context) error { return nil })

	case seqFlow:
		return EffectFunc(func(ctx context.Context) error {
			for _, step := range f.steps {
				if err := ip.Interpret(step, state).Run(ctx); err != nil {
					return err
				}
			}
			return nil
		})

	case sendFlow:
		return EffectFunc(func(ctx context.Context) error {
			for _, r := range f.receivers {
				env := Envelope{Sender: state.Self, Event: f.event, Receiver: r}
				if err := ip.ctx.Enqueue(ctx, env); err != nil {
					return err
				}
			}
			return nil
		})

	case forwardFlow:
		return EffectFunc(func(ctx context.Context) error {
			for _, r := range f.receivers {
				env := Envelope{Sender: state.Sender, Event: f.event, Receiver: r}
				if err := ip.ctx.Enqueue(ctx, env); err != nil {
					return err
				}
			}
			return nil
		})

	case parFlow:
		return EffectFunc(func(ctx context.Context) error {
			errs := make([]error, len(f.children))
			var wg conc.WaitGroup
			for i, child := range f.children {
				i, child := i, child
				wg.Go(func() { errs[i] = ip.Interpret(child, state).Run(ctx) })
			}
			wg.Wait()
			return errors.Join(errs...)
		})

	case forkFlow:
		return EffectFunc(func(ctx context.Context) error {
			ip.fork(ctx, f.child, state)
			return nil
		})

	case raceFlow:
		return EffectFunc(func(ctx context.Context) error {
			return raceEffects(ctx, ip.Interpret(f.a, state), ip.Interpret(f.b, state))
		})

	case delayFlow:
		return EffectFunc(func(ctx context.Context) error {
			timer := time.NewTimer(f.duration)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
			if f.child == nil {
				return nil
			}
			return ip.Interpret(f.child, state).Run(ctx)
		})

	case withSenderFlow:
		return EffectFunc(func(ctx context.Context) error {
			return ip.Interpret(f.f(state.Sender), state).Run(ctx)
		})

	case invokeFlow:
		return EffectFunc(func(ctx context.Context) error {
			return ip.Interpret(f.body, FlowState{Sender: f.caller, Self: f.callee}).Run(ctx)
		})

	case registerFlow:
		return EffectFunc(func(ctx context.Context) error {
			return ip.ctx.Register(ctx, f.parent, f.child)
		})

	case suspendFlow:
		return EffectFunc(func(ctx context.Context) error {
			v, err := f.thunk()
			if err != nil {
				return err
			}
			if f.bind == nil {
				return nil
			}
			return ip.Interpret(f.bind(v), state).Run(ctx)
		})

	case evalFlow:
		return EffectFunc(func(ctx context.Context) error {
			v := f.thunk()
			if f.bind == nil {
				return nil
			}
			return ip.Interpret(f.bind(v), state).Run(ctx)
		})

	default:
		panic(fmt.Sprintf("stagehand: unknown flow node %T", flow))
	}
}

// fork spawns child's interpretation in a detached, panic-safe
// goroutine: a panic there must never take down the rest of the
// runtime, so it's caught and logged instead of left to crash the
// process.
func (ip *Interpreter) fork(parent context.Context, child Flow, state FlowState) {
	effect := ip.Interpret(child, state)
	go func() {
		var catcher panics.Catcher
		catcher.Try(func() {
			_ = effect.Run(parent)
		})
		if recovered := catcher.Recovered(); recovered != nil {
			ip.logger.Printf("stagehand: forked flow panicked: %v", recovered.AsError())
		}
	}()
}
