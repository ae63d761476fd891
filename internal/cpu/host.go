// Package cpu implements the recursive symbolic-execution walker: the
// single-threaded, synchronous "CPU" that discovers instructions and
// subroutines by following every control-flow path from an entry point,
// tracking the accumulator/index width flags along the way.
package cpu

import (
	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/instruction"
	"github.com/retro65816/disasm/internal/state"
	"github.com/retro65816/disasm/internal/subroutine"
)

// Host is everything a CPU walker needs from the owning analysis. A CPU
// never touches storage directly: every discovery is reported through Host
// so that Host (the Analysis) can dedup across every independently-spawned
// walker and decide when a path has merged with one already explored.
type Host interface {
	// ReadByte reads one raw byte from the ROM at a 24-bit SNES address.
	ReadByte(addr uint32) byte

	// IsRAM reports whether addr names RAM rather than ROM; walking into
	// RAM means the code is self-modifying and cannot be trusted.
	IsRAM(addr uint32) bool

	// AddInstruction inserts an instruction occurrence keyed by its
	// (pc, subroutinePC, state) identity. ok is false when that identity
	// was already present, which is the signal to stop this path.
	AddInstruction(pc, subroutinePC uint32, opcode byte, argument uint32, st state.State) (inst instruction.Instruction, ok bool)

	// AnyInstruction returns a representative instruction previously
	// inserted at pc, regardless of which subroutine/state discovered it.
	AnyInstruction(pc uint32) (instruction.Instruction, bool)

	// AddReference records a control-transfer edge.
	AddReference(source, target, subroutinePC uint32)

	// AddSubroutine idempotently registers a subroutine entry point.
	AddSubroutine(pc uint32, label string) *subroutine.Subroutine

	// Subroutine returns the subroutine registered at pc, which must
	// already exist (the CPU only ever asks for its own subroutine or one
	// it has just registered via AddSubroutine).
	Subroutine(pc uint32) *subroutine.Subroutine

	// ComputeJumpTargets resolves an instruction's control-transfer
	// targets: directly from its operand when possible, otherwise by
	// consulting a user-defined jump table. ok is false when the site is
	// an unresolved indirect transfer.
	ComputeJumpTargets(inst instruction.Instruction) (targets []uint32, ok bool)

	// Assertion looks up a user override keyed by (pc, subroutinePC).
	Assertion(pc, subroutinePC uint32) (assertion.Assertion, bool)
}
