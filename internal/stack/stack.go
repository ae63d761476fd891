// Package stack implements the symbolic 65816 hardware stack used by the
// CPU walker to detect manipulated return addresses: every byte pushed is
// tagged with the instruction (if any) that pushed it, rather than with a
// concrete data value.
package stack

import "github.com/retro65816/disasm/internal/state"

// Entry is one byte on the symbolic stack. Producer is the PC of the
// instruction that pushed it, or 0 with Unknown true when the byte's origin
// is not tracked (e.g. it predates the start of the walk). A PHP push also
// carries the (State, Change) pair in effect at the time, used to restore
// processor state on a matching PLP.
type Entry struct {
	Producer uint32
	Unknown  bool

	// Only meaningful when this entry came from PHP.
	IsStateSnapshot bool
	SnapshotState   state.State
	SnapshotChange  state.Change
}

func unknownEntry() Entry {
	return Entry{Unknown: true}
}

// Stack is the symbolic hardware stack, addressed by a 16-bit pointer that
// starts at 0x100 and decrements on push. Entries above the current pointer
// are considered not-yet-popped; reading past the bottom of what has been
// tracked yields an Unknown entry rather than an error, since the walker
// may be examining a subroutine whose full call history was never modeled.
type Stack struct {
	memory  map[uint16]Entry
	pointer uint16
}

// New returns a stack with the pointer at its starting position.
func New() *Stack {
	return &Stack{
		memory:  make(map[uint16]Entry),
		pointer: 0x0100,
	}
}

// Clone returns an independent copy of s, for use when the CPU walker forks
// execution (branch fall-through, call, jump).
func (s *Stack) Clone() *Stack {
	clone := &Stack{
		memory:  make(map[uint16]Entry, len(s.memory)),
		pointer: s.pointer,
	}
	for k, v := range s.memory {
		clone.memory[k] = v
	}
	return clone
}

// SetPointer overrides the stack pointer directly, as TCS/TXS can.
func (s *Stack) SetPointer(pointer uint16) {
	s.pointer = pointer
}

// Pointer returns the current stack pointer.
func (s *Stack) Pointer() uint16 {
	return s.pointer
}

// Push pushes size bytes, all tagged as produced by producerPC, highest
// byte first so that popping later returns them in reverse (LIFO) order.
func (s *Stack) Push(producerPC uint32, size int) {
	for n := 0; n < size; n++ {
		s.memory[s.pointer] = Entry{Producer: producerPC}
		s.pointer--
	}
}

// PushUnknown pushes size bytes with no known producer, used for values
// pushed by instructions the walker does not track byte-for-byte.
func (s *Stack) PushUnknown(size int) {
	for n := 0; n < size; n++ {
		s.memory[s.pointer] = unknownEntry()
		s.pointer--
	}
}

// PushState pushes a single byte carrying a (State, Change) snapshot, as
// PHP does. A matching PLP restores this snapshot instead of simply
// discarding the byte.
func (s *Stack) PushState(producerPC uint32, st state.State, change state.Change) {
	s.memory[s.pointer] = Entry{
		Producer:        producerPC,
		IsStateSnapshot: true,
		SnapshotState:   st,
		SnapshotChange:  change,
	}
	s.pointer--
}

// PopOne pops and returns a single byte, incrementing the pointer first.
// A pointer position never written to (e.g. at the bottom of what this walk
// has modeled) yields an Unknown entry.
func (s *Stack) PopOne() Entry {
	s.pointer++
	entry, ok := s.memory[s.pointer]
	if !ok {
		return unknownEntry()
	}
	delete(s.memory, s.pointer)
	return entry
}

// Pop pops size bytes and returns them in reverse push order: the
// most-recently-pushed byte first.
func (s *Stack) Pop(size int) []Entry {
	entries := make([]Entry, size)
	for n := 0; n < size; n++ {
		entries[n] = s.PopOne()
	}
	return entries
}
