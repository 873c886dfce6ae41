package ring

// Handler processes one published value at its sequence number. It is
// called from exactly one goroutine: the EventProcessor that owns it.
type Handler[T any] func(seq int64, value T)

// EventProcessor drives a single consumer goroutine against a ring buffer:
// wait for the next sequence via its SequenceBarrier, invoke Handler, then
// advance its own Sequence so the producer (and any downstream barrier
// chained off this consumer) knows the slot is free. This generalizes the
// teacher's disruptor.EventProcessor, which spin-waited on a single slot's
// SequenceNum field directly; here waiting and advancing is delegated to
// the barrier/Sequence abstractions so the same type serves both the input
// ring's sole consumer (the matching processor) and the output ring's
// independent fan-out consumers.
type EventProcessor[T any] struct {
	rb       *RingBuffer[T]
	barrier  *SequenceBarrier
	sequence *Sequence
	handler  Handler[T]

	// onPanic, if set, is called with the recovered value and the loop
	// continues processing later sequences. If nil, a handler panic
	// propagates and crashes the processor goroutine. The input-ring
	// processor (internal/engine) deliberately leaves this nil: a panic
	// there means an invariant was violated inside the matching core and
	// continuing would mean operating on corrupted book state. Output-side
	// consumers (persistence, audit, notify, marketdata) set this to log
	// and continue, since they are ambient I/O and one bad event should not
	// take down the event stream for the others.
	onPanic func(seq int64, recovered any)

	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// NewEventProcessor creates a processor that will read from rb, gated by
// barrier, invoking handler for each published sequence in order.
func NewEventProcessor[T any](rb *RingBuffer[T], barrier *SequenceBarrier, handler Handler[T]) *EventProcessor[T] {
	return &EventProcessor[T]{
		rb:         rb,
		barrier:    barrier,
		sequence:   NewSequence(),
		handler:    handler,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Sequence exposes this consumer's progress counter, so it can be
// registered as a gating sequence on the producer's Sequencer or chained
// into a downstream barrier.
func (p *EventProcessor[T]) Sequence() *Sequence {
	return p.sequence
}

// OnPanic installs a recover-and-continue policy and returns p for
// chaining at construction time.
func (p *EventProcessor[T]) OnPanic(f func(seq int64, recovered any)) *EventProcessor[T] {
	p.onPanic = f
	return p
}

// Start launches the processor's run loop in its own goroutine.
func (p *EventProcessor[T]) Start() {
	go p.run()
}

func (p *EventProcessor[T]) run() {
	defer close(p.doneCh)

	next := p.sequence.Get() + 1
	for {
		available, err := p.barrier.WaitFor(next)
		if err != nil {
			return
		}

		for ; next <= available; next++ {
			p.process(next)
		}
		p.sequence.Set(available)
	}
}

func (p *EventProcessor[T]) process(seq int64) {
	if p.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				p.onPanic(seq, r)
			}
		}()
	}
	p.handler(seq, *p.rb.Get(seq))
}

// Shutdown alerts the barrier and waits for the run loop to exit. The wait
// strategies check the cursor before the alert flag, so slots already
// published when the loop next waits are still handled before it exits;
// slots published after that are not. Work a handler hands off elsewhere
// (the persistence consumer's own queue) is not drained by Shutdown.
func (p *EventProcessor[T]) Shutdown() {
	p.barrier.Alert()
	<-p.doneCh
}
