// Package ring implements the LMAX Disruptor pattern: a pre-allocated
// circular buffer with cursor-based producer/consumer coordination, used as
// the lock-free transport between the HTTP gateway, the single-threaded
// matching processor, and the fan-out of output consumers.
//
// Unlike a general-purpose queue, a ring here has exactly one producer per
// stage. The input ring has one producer (the gateway) and one consumer
// (the processor). The output ring has one producer (the processor) and
// several independent consumers (market data, audit, notification,
// persistence) that each read the full event stream at their own pace; the
// producer only has to wait for the slowest of them before it can reclaim a
// slot.
package ring

import "sync/atomic"

// cacheLinePad is sized to push the next field onto its own cache line on
// a typical 64-byte-line CPU, preventing false sharing between a
// producer's cursor and a consumer's sequence when they live in adjacent
// memory.
type cacheLinePad [64 - 8]byte

// Sequence is a cache-line-padded, atomically updated counter. Producers
// and consumers each own one: the producer's cursor is the highest
// published slot index: a consumer's sequence is the highest slot index it
// has finished processing.
type Sequence struct {
	_     cacheLinePad
	value int64
	_     cacheLinePad
}

// InitialSequenceValue is the value a fresh Sequence starts at: no slot has
// been published or consumed yet.
const InitialSequenceValue int64 = -1

// NewSequence creates a Sequence initialized to InitialSequenceValue.
func NewSequence() *Sequence {
	s := &Sequence{}
	s.Set(InitialSequenceValue)
	return s
}

// Get returns the current value with acquire semantics.
func (s *Sequence) Get() int64 {
	return atomic.LoadInt64(&s.value)
}

// Set stores a new value with release semantics.
func (s *Sequence) Set(v int64) {
	atomic.StoreInt64(&s.value, v)
}

// Incr advances the sequence by delta and returns the new value.
func (s *Sequence) Incr(delta int64) int64 {
	return atomic.AddInt64(&s.value, delta)
}

// minSequence returns the smallest Get() among seqs, or fallback if seqs is
// empty. Used by the producer to find the slowest consumer it must not lap.
func minSequence(seqs []*Sequence, fallback int64) int64 {
	if len(seqs) == 0 {
		return fallback
	}
	min := seqs[0].Get()
	for _, s := range seqs[1:] {
		if v := s.Get(); v < min {
			min = v
		}
	}
	return min
}
