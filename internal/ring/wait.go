package ring

import (
	"errors"
	"runtime"
	"time"
)

// ErrAlerted is returned by a WaitStrategy when the barrier was alerted
// (consumer shutdown requested) while waiting.
var ErrAlerted = errors.New("ring: wait alerted")

// WaitStrategy is how a consumer blocks for the producer's cursor to reach
// a sequence it wants to read. Busy-spinning gives the lowest latency at
// the cost of burning a core; yielding and sleeping trade latency for CPU
// headroom, the same tradeoff the teacher's processor loop made implicitly
// by calling runtime.Gosched() in a spin loop.
type WaitStrategy interface {
	// WaitFor blocks until cursor.Get() >= seq or alert() returns true, then
	// returns the cursor value actually observed (>= seq) or ErrAlerted.
	WaitFor(seq int64, cursor *Sequence, alert func() bool) (int64, error)
}

// BusySpinWaitStrategy never yields the CPU. Lowest latency; appropriate
// only when a core can be dedicated to the consumer.
type BusySpinWaitStrategy struct{}

func (BusySpinWaitStrategy) WaitFor(seq int64, cursor *Sequence, alert func() bool) (int64, error) {
	for {
		if available := cursor.Get(); available >= seq {
			return available, nil
		}
		if alert() {
			return 0, ErrAlerted
		}
	}
}

// YieldingWaitStrategy spins briefly, then calls runtime.Gosched() between
// checks, matching the teacher's EventProcessor.processLoop.
type YieldingWaitStrategy struct {
	SpinTries int
}

func NewYieldingWaitStrategy() YieldingWaitStrategy {
	return YieldingWaitStrategy{SpinTries: 100}
}

func (w YieldingWaitStrategy) WaitFor(seq int64, cursor *Sequence, alert func() bool) (int64, error) {
	counter := w.SpinTries
	for {
		if available := cursor.Get(); available >= seq {
			return available, nil
		}
		if alert() {
			return 0, ErrAlerted
		}
		if counter > 0 {
			counter--
		} else {
			runtime.Gosched()
		}
	}
}

// SleepingWaitStrategy spins briefly, yields, then parks for short
// intervals. Best CPU behavior for consumers that tolerate microsecond-
// scale added latency, such as the output-side persistence and audit
// consumers.
type SleepingWaitStrategy struct {
	SpinTries  int
	YieldTries int
	SleepFor   time.Duration
}

func NewSleepingWaitStrategy() SleepingWaitStrategy {
	return SleepingWaitStrategy{SpinTries: 100, YieldTries: 100, SleepFor: 50 * time.Microsecond}
}

func (w SleepingWaitStrategy) WaitFor(seq int64, cursor *Sequence, alert func() bool) (int64, error) {
	spins, yields := w.SpinTries, w.YieldTries
	for {
		if available := cursor.Get(); available >= seq {
			return available, nil
		}
		if alert() {
			return 0, ErrAlerted
		}
		switch {
		case spins > 0:
			spins--
		case yields > 0:
			yields--
			runtime.Gosched()
		default:
			time.Sleep(w.SleepFor)
		}
	}
}
