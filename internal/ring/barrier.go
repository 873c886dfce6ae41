package ring

import "sync/atomic"

// SequenceBarrier lets a single consumer wait for the producer's cursor to
// reach a sequence it wants, using a configurable WaitStrategy, and
// supports being woken up early via Alert for graceful shutdown.
type SequenceBarrier struct {
	cursor   *Sequence
	strategy WaitStrategy
	alerted  int32
}

// NewSequenceBarrier builds a barrier against the given producer cursor.
func NewSequenceBarrier(cursor *Sequence, strategy WaitStrategy) *SequenceBarrier {
	return &SequenceBarrier{cursor: cursor, strategy: strategy}
}

// WaitFor blocks until the cursor has published at least seq, or the
// barrier is alerted. It returns the highest sequence actually available,
// which may be greater than seq if the producer has raced ahead.
func (b *SequenceBarrier) WaitFor(seq int64) (int64, error) {
	return b.strategy.WaitFor(seq, b.cursor, b.IsAlerted)
}

// Alert wakes any goroutine blocked in WaitFor with ErrAlerted. Used to
// unwind a consumer loop during shutdown without waiting for a sequence
// that may never arrive.
func (b *SequenceBarrier) Alert() {
	atomic.StoreInt32(&b.alerted, 1)
}

// ClearAlert resets the alert flag, allowing the barrier to be reused.
func (b *SequenceBarrier) ClearAlert() {
	atomic.StoreInt32(&b.alerted, 0)
}

// IsAlerted reports whether Alert has been called since the last ClearAlert.
func (b *SequenceBarrier) IsAlerted() bool {
	return atomic.LoadInt32(&b.alerted) != 0
}
