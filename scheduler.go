package stagehand

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Config configures a Scheduler as a plain value struct — there is no
// file-based loader here; callers construct one directly.
type Config struct {
	// QueueSize bounds both the global task queue and the ready queue.
	QueueSize int
	// NumberOfWorkers is the size of the worker fleet; must be >= 1.
	NumberOfWorkers int
	// ProcessQueueSize bounds every process's mailbox.
	ProcessQueueSize int
	// DeadLetterHandler, if set, becomes DeadLetterRef's Produce. The
	// default is a silent no-op handler defined for every event.
	DeadLetterHandler Produce
	// Logger receives shutdown and undeliverable-envelope records. The
	// default wraps log.Default().
	Logger Logger
}

func (c Config) withDefaults() Config {
	if c.QueueSize < 1 {
		c.QueueSize = 1024
	}
	if c.NumberOfWorkers < 1 {
		c.NumberOfWorkers = 1
	}
	if c.ProcessQueueSize < 1 {
		c.ProcessQueueSize = 1024
	}
	if c.DeadLetterHandler == nil {
		c.DeadLetterHandler = func() Handler {
			return HandlerFrom(func(Event) bool { return true }, func(Event) Flow { return Unit() })
		}
	}
	if c.Logger == nil {
		c.Logger = defaultLogger()
	}
	return c
}

// Scheduler owns the ready queue, the worker fleet, the routing loop,
// and the Context they all share.
type Scheduler struct {
	cfg         Config
	ctx         *Context
	ready       *BoundedQueue[ProcessRef]
	workers     []*Worker
	interpreter *Interpreter
}

// NewScheduler builds a Scheduler. It registers the dead-letter
// process immediately, so DeadLetterRef is always resolvable.
func NewScheduler(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()

	rootCtx := newContext(cfg.QueueSize, cfg.ProcessQueueSize, cfg.Logger)
	ready := NewBoundedQueue[ProcessRef](cfg.QueueSize)
	interp := NewInterpreter(rootCtx, cfg.Logger)

	s := &Scheduler{cfg: cfg, ctx: rootCtx, ready: ready, interpreter: interp}

	deadLetter := NewProcess(DeadLetterRef, "deadletter", cfg.DeadLetterHandler)
	// The dead-letter process is wired directly into the registry
	// instead of through Context.Register + the task queue: it must
	// exist before anything can be routed to it, including its own
	// synthetic Start envelope's routing.
	rootCtx.mu.Lock()
	rootCtx.states[DeadLetterRef] = newProcessState(deadLetter, cfg.ProcessQueueSize)
	rootCtx.processes[DeadLetterRef] = deadLetter
	rootCtx.parentOf[DeadLetterRef] = SystemRef
	if rootCtx.children[SystemRef] == nil {
		rootCtx.children[SystemRef] = make(map[ProcessRef]struct{})
	}
	rootCtx.children[SystemRef][DeadLetterRef] = struct{}{}
	rootCtx.mu.Unlock()
	// The task queue is fresh and has room, so this never fails.
	rootCtx.taskQueue.TryPut(Deliver{Envelope: Envelope{Sender: SystemRef, Event: Start{}, Receiver: DeadLetterRef}})

	for i := 0; i < cfg.NumberOfWorkers; i++ {
		s.workers = append(s.workers, newWorker(i, rootCtx, ready, interp, cfg.Logger))
	}
	return s
}

// Context returns the scheduler's process registry, for tests and
// bootstrapping callers that need to register root processes.
func (s *Scheduler) Context() *Context { return s.ctx }

// Spawn registers process as a child of parent through the normal
// Context.Register path (synthetic Start included). A convenience for
// callers who'd otherwise write s.Context().Register themselves.
func (s *Scheduler) Spawn(ctx context.Context, parent ProcessRef, process *Process) error {
	return s.ctx.Register(ctx, parent, process)
}

// Submit accepts a Deliver task onto the global task queue, blocking
// for backpressure until there is room or ctx is done. Any other task
// variant is a programming error.
func (s *Scheduler) Submit(ctx context.Context, task Task) error {
	d, ok := task.(Deliver)
	if !ok {
		panic(fmt.Sprintf("stagehand: scheduler.submit only accepts Deliver, got %T", task))
	}
	return s.ctx.taskQueue.Enqueue(ctx, d)
}

// Run runs the routing loop and the worker fleet until ctx is done or
// one of them returns a non-cancellation error, then runs the
// shutdown finalizer unconditionally before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.routingLoop(gctx) })
	for _, w := range s.workers {
		w := w
		g.Go(func() error { return w.Run(gctx) })
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// routingLoop dequeues a Deliver, resolves its receiver, and either
// routes it to the ready queue, bounces it to dead-letter, or (for
// Kill) raises interruption and enqueues the follow-up Stop through
// the same Submit path rather than dispatching it inline.
func (s *Scheduler) routingLoop(ctx context.Context) error {
	for {
		d, err := s.ctx.taskQueue.Dequeue(ctx)
		if err != nil {
			return err
		}
		env := d.Envelope

		ps, ok := s.ctx.GetProcessState(env.Receiver)
		if !ok {
			s.deadLetter(ctx, env, UnknownProcessError{Ref: env.Receiver})
			continue
		}

		if _, isKill := env.Event.(Kill); isKill {
			s.ctx.Interrupt(env.Receiver)
			stop := Envelope{Sender: env.Sender, Event: Stop{}, Receiver: env.Receiver}
			if err := s.ctx.Enqueue(ctx, stop); err != nil {
				return err
			}
			continue
		}

		if ps.tryPut(Deliver{Envelope: env}) {
			if err := s.ready.Enqueue(ctx, env.Receiver); err != nil {
				return err
			}
			continue
		}
		s.deadLetter(ctx, env, EventDeliveryError{Envelope: env})
	}
}

// deadLetter mirrors Worker.deadLetter for envelopes that fail before
// ever reaching a mailbox (unknown receiver, full mailbox). Routing
// uses a non-blocking ready-queue publish so a saturated ready queue
// can never make the routing loop itself deadlock.
func (s *Scheduler) deadLetter(ctx context.Context, env Envelope, cause error) {
	if env.Receiver == DeadLetterRef {
		s.cfg.Logger.Printf("stagehand: dropping undeliverable dead-letter cascade for %v: %v", env, cause)
		return
	}
	ps, ok := s.ctx.GetProcessState(DeadLetterRef)
	if !ok {
		s.cfg.Logger.Printf("stagehand: no dead-letter process registered, dropping %v: %v", env, cause)
		return
	}
	dead := DeadLetter{Envelope: env, Cause: cause}
	dlEnv := Envelope{Sender: SystemRef, Event: dead, Receiver: DeadLetterRef}
	if !ps.tryPut(Deliver{Envelope: dlEnv}) {
		s.cfg.Logger.Printf("stagehand: dead-letter mailbox full, dropping %v: %v", env, cause)
		return
	}
	if !s.ready.TryPut(DeadLetterRef) {
		s.cfg.Logger.Printf("stagehand: ready queue full, dead-letter for %v delayed", env)
	}
}

// shutdown stops every process descending from SystemRef, guaranteed
// to run on every Run exit path (normal cancellation included).
func (s *Scheduler) shutdown() {
	s.cfg.Logger.Printf("stagehand: scheduler shutting down")
	shutdownCtx := context.Background()
	stopChildren(shutdownCtx, s.ctx, s.interpreter, s.cfg.Logger, SystemRef)
	s.cfg.Logger.Printf("stagehand: scheduler shutdown complete")
}
