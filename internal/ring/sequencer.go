package ring

import "runtime"

// Sequencer coordinates a single producer's claims against a RingBuffer.
// Unlike the teacher's disruptor.Sequencer, which uses a CAS loop to
// support multiple producers, every producer in this system (the gateway
// feeding the input ring, the matching processor feeding the output ring)
// is confined to its own single goroutine, so Sequencer claims sequences
// with a plain increment: no compare-and-swap, no retry loop.
type Sequencer struct {
	size    int64
	cursor  *Sequence
	claimed int64 // highest sequence claimed so far, producer-local
	gating  []*Sequence
}

// NewSequencer creates a Sequencer for a ring buffer of the given size. The
// gating sequences are the consumers the producer must not lap; they are
// typically supplied once all consumers have been constructed.
func NewSequencer(size int64, gating ...*Sequence) *Sequencer {
	return &Sequencer{
		size:    size,
		cursor:  NewSequence(),
		claimed: InitialSequenceValue,
		gating:  gating,
	}
}

// Cursor exposes the producer's published-sequence counter so that
// consumers can build a SequenceBarrier against it.
func (s *Sequencer) Cursor() *Sequence {
	return s.cursor
}

// SetGatingSequences replaces the set of consumer sequences the producer
// must stay behind. Call once, after all consumers exist and before the
// producer starts claiming slots.
func (s *Sequencer) SetGatingSequences(seqs ...*Sequence) {
	s.gating = seqs
}

// Next claims the next sequence for writing, blocking (via Gosched, not a
// CPU spin) until there is room behind the slowest gating consumer. This is
// the producer-side backpressure mechanism: a slow consumer throttles the
// producer instead of the producer silently overwriting unconsumed slots.
func (s *Sequencer) Next() int64 {
	next := s.claimed + 1
	wrapPoint := next - s.size
	for {
		if wrapPoint <= minSequence(s.gating, next) {
			break
		}
		runtime.Gosched()
	}
	s.claimed = next
	return next
}

// TryNext claims the next sequence without blocking, returning ok=false if
// doing so would lap the slowest consumer.
func (s *Sequencer) TryNext() (seq int64, ok bool) {
	next := s.claimed + 1
	wrapPoint := next - s.size
	if wrapPoint > minSequence(s.gating, next) {
		return 0, false
	}
	s.claimed = next
	return next, true
}

// Publish makes sequence seq visible to consumers. Slot data must be
// written before calling Publish; the store into cursor is a release, so
// everything written to the slot is guaranteed visible to a consumer that
// observes the new cursor value.
func (s *Sequencer) Publish(seq int64) {
	s.cursor.Set(seq)
}
