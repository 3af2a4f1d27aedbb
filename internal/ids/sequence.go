// Package ids implements the monotonically increasing reqId sequence
// counter shared by the client (hex reqIds) and server (decimal event
// reqIds). Both mint from the same kind of counter: start at 100,
// wrap back to 100 on overflow, unique only within the lifetime of
// overlapping in-flight calls.
package ids

import (
	"fmt"
	"sync"
)

// startSeq is the fixed start value spec §3/§9 names for the sequence
// counter, reused on overflow wraparound.
const startSeq = 100

// Sequence is a goroutine-safe monotonic counter with wraparound.
type Sequence struct {
	mu   sync.Mutex
	next uint32
}

// NewSequence returns a Sequence starting at the fixed start value.
func NewSequence() *Sequence {
	return &Sequence{next: startSeq}
}

// Next returns the next value in the sequence, wrapping to the start
// value on overflow.
func (s *Sequence) Next() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.next
	if s.next == ^uint32(0) {
		s.next = startSeq
	} else {
		s.next++
	}
	return v
}

// NextHex returns the next value formatted as 8 zero-padded lowercase
// hex digits, the client-side reqId wire form.
func (s *Sequence) NextHex() string {
	return fmt.Sprintf("%08x", s.Next())
}

// NextDecimal returns the next value formatted as a plain decimal
// string, the server-side event reqId wire form.
func (s *Sequence) NextDecimal() string {
	return fmt.Sprintf("%d", s.Next())
}
