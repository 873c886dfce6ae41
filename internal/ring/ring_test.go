package ring

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRingBuffer_SizeMustBePowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two size")
		}
	}()
	NewRingBuffer[int](100)
}

func TestRingBuffer_GetWritesAndReads(t *testing.T) {
	rb := NewRingBuffer[int](16)
	*rb.Get(5) = 42
	if got := *rb.Get(5); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	// wraps around correctly
	*rb.Get(5 + 16) = 99
	if got := *rb.Get(5); got != 99 {
		t.Errorf("expected slot to be shared across a full lap, got %d", got)
	}
}

func TestSequencer_ClaimsSequentially(t *testing.T) {
	seq := NewSequencer(1024)
	for i := int64(0); i < 100; i++ {
		got := seq.Next()
		if got != i {
			t.Fatalf("expected sequence %d, got %d", i, got)
		}
	}
}

func TestSequencer_BlocksBehindSlowestConsumer(t *testing.T) {
	consumer := NewSequence()
	seq := NewSequencer(16, consumer)

	for i := int64(0); i < 16; i++ {
		seq.Next()
	}

	claimed := make(chan int64, 1)
	go func() {
		claimed <- seq.Next()
	}()

	select {
	case <-claimed:
		t.Fatal("producer claimed a slot it should have been gated from")
	case <-time.After(20 * time.Millisecond):
		// expected: still blocked
	}

	consumer.Set(0) // consumer has now processed slot 0, freeing room
	select {
	case <-claimed:
	case <-time.After(time.Second):
		t.Fatal("producer did not unblock after gating sequence advanced")
	}
}

func TestEventProcessor_ProcessesInOrder(t *testing.T) {
	rb := NewRingBuffer[int](16)
	sequencer := NewSequencer(16)

	barrier := NewSequenceBarrier(sequencer.Cursor(), NewYieldingWaitStrategy())

	var sum int64
	var count int64
	var outOfOrder int64
	last := int64(-1)
	proc := NewEventProcessor(rb, barrier, func(seq int64, value int) {
		if seq != last+1 || int64(value) != seq+1 {
			atomic.AddInt64(&outOfOrder, 1)
		}
		last = seq
		atomic.AddInt64(&sum, int64(value))
		atomic.AddInt64(&count, 1)
	})
	sequencer.SetGatingSequences(proc.Sequence())
	proc.Start()

	const n = 50
	for i := int64(0); i < n; i++ {
		s := sequencer.Next()
		*rb.Get(s) = int(i) + 1
		sequencer.Publish(s)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&count) < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	proc.Shutdown()

	if got := atomic.LoadInt64(&count); got != n {
		t.Fatalf("expected %d processed events, got %d", n, got)
	}
	want := int64(n * (n + 1) / 2)
	if got := atomic.LoadInt64(&sum); got != want {
		t.Errorf("expected sum %d, got %d", want, got)
	}
	if got := atomic.LoadInt64(&outOfOrder); got != 0 {
		t.Errorf("expected events handled in sequence order, %d out of order", got)
	}
}

func TestEventProcessor_InvokesPanickingHandlerWithoutOnPanic(t *testing.T) {
	rb := NewRingBuffer[int](16)
	sequencer := NewSequencer(16)
	barrier := NewSequenceBarrier(sequencer.Cursor(), BusySpinWaitStrategy{})

	// The handler recovers its own panic: with no OnPanic installed the
	// processor does not recover it, and an unrecovered panic would end the
	// test binary. The test checks only that the handler ran and panicked.
	panicked := make(chan any, 1)
	proc := NewEventProcessor(rb, barrier, func(seq int64, value int) {
		defer func() {
			panicked <- recover()
		}()
		panic("invariant violated")
	})
	proc.Start()

	s := sequencer.Next()
	*rb.Get(s) = 1
	sequencer.Publish(s)

	select {
	case r := <-panicked:
		if r == nil {
			t.Fatal("expected handler panic to be observed")
		}
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestEventProcessor_OnPanicRecoversAndContinues(t *testing.T) {
	rb := NewRingBuffer[int](16)
	sequencer := NewSequencer(16)
	barrier := NewSequenceBarrier(sequencer.Cursor(), NewYieldingWaitStrategy())

	var processed int64
	var recovered int64
	proc := NewEventProcessor(rb, barrier, func(seq int64, value int) {
		if value == 0 {
			panic("bad event")
		}
		atomic.AddInt64(&processed, 1)
	}).OnPanic(func(seq int64, r any) {
		atomic.AddInt64(&recovered, 1)
	})
	sequencer.SetGatingSequences(proc.Sequence())
	proc.Start()
	defer proc.Shutdown()

	values := []int{1, 0, 2}
	for _, v := range values {
		s := sequencer.Next()
		*rb.Get(s) = v
		sequencer.Publish(s)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&processed) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if got := atomic.LoadInt64(&processed); got != 2 {
		t.Errorf("expected 2 good events processed, got %d", got)
	}
	if got := atomic.LoadInt64(&recovered); got != 1 {
		t.Errorf("expected 1 panic recovered, got %d", got)
	}
}
