package stagehand

import (
	"context"
	"fmt"
)

// Effect is what Interpreter.Interpret produces: a unit of work that
// performs a flow's observable operations and can be cancelled via its
// context.Context argument.
type Effect interface {
	Run(ctx context.Context) error
}

// EffectFunc adapts a plain function to Effect.
type EffectFunc func(ctx context.Context) error

func (f EffectFunc) Run(ctx context.Context) error { return f(ctx) }

// raceEffects runs a and b concurrently under a shared cancellable
// context; whichever finishes first cancels the other and its result
// is returned. A panic in either branch is recovered and surfaces as
// an error on the joining goroutine, consistent with every other
// effect boundary in this package.
func raceEffects(parent context.Context, a, b Effect) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make(chan error, 2)
	run := func(e Effect) {
		defer func() {
			if r := recover(); r != nil {
				results <- fmt.Errorf("stagehand: panic in raced effect: %v", r)
			}
		}()
		results <- e.Run(ctx)
	}
	go run(a)
	go run(b)
	return <-results
}
