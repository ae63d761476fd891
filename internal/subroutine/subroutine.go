// Package subroutine models a single subroutine discovered or declared
// during analysis: the instructions attributed to it and the state changes
// observed (or left unresolved) at each of its exit points.
package subroutine

import (
	"fmt"

	"github.com/retro65816/disasm/internal/instruction"
	"github.com/retro65816/disasm/internal/opcode"
	"github.com/retro65816/disasm/internal/state"
)

// Subroutine collects everything known about one subroutine entry point.
type Subroutine struct {
	PC    uint32
	Label string

	// IsEntryPoint marks a subroutine whose PC is one of the analysis's
	// user-declared entry points, rather than one discovered via a call.
	IsEntryPoint bool

	instructions map[uint32]instruction.Instruction

	// Keyed by the PC of the exit instruction (RTS/RTL/RTI or the
	// unresolved control transfer that stood in for one).
	knownStateChanges   map[uint32]state.Change
	unknownStateChanges map[uint32]state.Change
}

// DefaultLabel returns the generated label for a subroutine entry at pc.
func DefaultLabel(pc uint32) string {
	return fmt.Sprintf("sub_%06X", pc)
}

// New creates a subroutine entry. If label is empty, DefaultLabel(pc) is
// used.
func New(pc uint32, label string) *Subroutine {
	if label == "" {
		label = DefaultLabel(pc)
	}
	return &Subroutine{
		PC:                  pc,
		Label:               label,
		instructions:        make(map[uint32]instruction.Instruction),
		knownStateChanges:   make(map[uint32]state.Change),
		unknownStateChanges: make(map[uint32]state.Change),
	}
}

// AddInstruction records an instruction occurrence as belonging to this
// subroutine.
func (s *Subroutine) AddInstruction(i instruction.Instruction) {
	s.instructions[i.PC] = i
}

// Instructions returns every instruction PC attributed to this subroutine.
func (s *Subroutine) Instructions() map[uint32]instruction.Instruction {
	return s.instructions
}

// AddStateChange records the state change observed when control left the
// subroutine at exitPC, routing it into the known or unknown bucket
// depending on change.Unknown().
func (s *Subroutine) AddStateChange(exitPC uint32, change state.Change) {
	if change.Unknown() {
		s.unknownStateChanges[exitPC] = change
		return
	}
	s.knownStateChanges[exitPC] = change
}

// KnownStateChanges returns the known exit-state changes keyed by exit PC.
func (s *Subroutine) KnownStateChanges() map[uint32]state.Change {
	return s.knownStateChanges
}

// UnknownStateChanges returns the unresolved exit-state changes keyed by
// exit PC.
func (s *Subroutine) UnknownStateChanges() map[uint32]state.Change {
	return s.unknownStateChanges
}

// HasUnknownStateChanges reports whether any exit point of this subroutine
// could not be resolved to a known state delta.
func (s *Subroutine) HasUnknownStateChanges() bool {
	return len(s.unknownStateChanges) > 0
}

// SimplifiedStateChanges returns the distinct known exit-state deltas,
// simplified against callerState (deltas that are no-ops under callerState
// are elided) and deduplicated by their Key(). Called while propagating a
// callee's state back into its caller: a single distinct result means the
// subroutine has one observable effect on (m, x) regardless of call site.
func (s *Subroutine) SimplifiedStateChanges(callerState state.State) []state.Change {
	seen := make(map[state.Key]state.Change)
	for _, change := range s.knownStateChanges {
		simplified := change.Simplify(callerState)
		seen[simplified.Key()] = simplified
	}
	result := make([]state.Change, 0, len(seen))
	for _, change := range seen {
		result = append(result, change)
	}
	return result
}

// SavesStateInIncipit reports whether this subroutine's very first
// instruction is PHP, the idiom used to save processor state on entry so it
// can be restored with a matching PLP before every return.
func (s *Subroutine) SavesStateInIncipit() bool {
	entry, ok := s.instructions[s.PC]
	return ok && entry.Op() == opcode.PHP
}

// IsUnknownBecauseOf reports whether any unresolved exit carries reason.
func (s *Subroutine) IsUnknownBecauseOf(reason state.UnknownReason) bool {
	for _, change := range s.unknownStateChanges {
		if change.Reason == reason {
			return true
		}
	}
	return false
}

// IsResponsibleForUnknown reports whether any unresolved exit originated in
// this subroutine itself, rather than having propagated up from a callee
// (the generic Unknown reason).
func (s *Subroutine) IsResponsibleForUnknown() bool {
	for _, change := range s.unknownStateChanges {
		if change.Reason != state.Unknown {
			return true
		}
	}
	return false
}
