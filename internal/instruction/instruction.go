// Package instruction models a single decoded 65816 instruction: its
// opcode, raw argument bytes, and the processor state in effect when the
// CPU walker reached it.
package instruction

import (
	"fmt"

	"github.com/retro65816/disasm/internal/opcode"
	"github.com/retro65816/disasm/internal/state"
)

// Instruction is one decoded instruction occurrence. Its identity for
// deduplication purposes is the triple (PC, SubroutinePC, EntryState): the
// same bytes reached under a different processor state, or attributed to a
// different subroutine, are a distinct occurrence.
type Instruction struct {
	PC           uint32
	SubroutinePC uint32
	Opcode       byte
	Argument     uint32 // raw little-endian operand bytes, width given by ArgumentSize
	EntryState   state.State
	Label        string // set when this instruction occurrence is itself labeled
}

// New decodes a single instruction occurrence from its opcode byte, the raw
// operand bytes already read from ROM (zero-extended to uint32), and the
// processor state it was reached under.
func New(pc, subroutinePC uint32, op byte, argument uint32, entryState state.State) Instruction {
	return Instruction{
		PC:           pc,
		SubroutinePC: subroutinePC,
		Opcode:       op,
		Argument:     argument,
		EntryState:   entryState,
	}
}

func (i Instruction) entry() opcode.Entry {
	return opcode.Lookup(i.Opcode)
}

// Op returns the decoded operation.
func (i Instruction) Op() opcode.Op {
	return i.entry().Op
}

// Mode returns the decoded addressing mode.
func (i Instruction) Mode() opcode.Mode {
	return i.entry().Mode
}

// Type classifies the instruction's effect on control flow.
func (i Instruction) Type() opcode.Type {
	return opcode.TypeOf(i.Op())
}

// IsControl reports whether this instruction transfers control.
func (i Instruction) IsControl() bool {
	return opcode.IsControl(i.Op())
}

// ChangesA reports whether this instruction is on the fixed list of
// operations that change the accumulator.
func (i Instruction) ChangesA() bool {
	return opcode.ChangesA(i.Op())
}

// ChangesX reports whether this instruction is on the fixed list of
// operations that change an index register.
func (i Instruction) ChangesX() bool {
	return opcode.ChangesX(i.Op())
}

// ChangesStackPointer reports whether this instruction transfers a new
// value into the stack pointer (TCS, TXS).
func (i Instruction) ChangesStackPointer() bool {
	return opcode.ChangesStackPointer(i.Op())
}

// ArgumentSize returns the operand size in bytes under EntryState.
func (i Instruction) ArgumentSize() int {
	return opcode.ArgumentSize(i.entry(), i.EntryState)
}

// Size returns the total instruction size in bytes, opcode byte included.
func (i Instruction) Size() int {
	return opcode.Size(i.entry(), i.EntryState)
}

// AbsoluteArgument resolves the instruction's operand to an absolute
// 24-bit address when the addressing mode makes that meaningful:
//
//   - ImmediateM, ImmediateX, Immediate8, AbsoluteLong: the raw argument.
//   - Absolute, only for control-transfer instructions: the argument
//     combined with the instruction's own bank.
//   - Relative: pc + size + sign-extend(argument as int8).
//   - RelativeLong: pc + size + sign-extend(argument as int16).
//
// Every other mode (indirect, indexed, stack-relative, move) returns false:
// resolving those requires a jump table or cannot be resolved at all.
func (i Instruction) AbsoluteArgument() (uint32, bool) {
	switch i.Mode() {
	case opcode.ImmediateM, opcode.ImmediateX, opcode.Immediate8, opcode.AbsoluteLong:
		return i.Argument, true
	case opcode.Absolute:
		if !i.IsControl() {
			return 0, false
		}
		return (i.PC & 0xFF0000) | i.Argument, true
	case opcode.Relative:
		offset := int32(int8(i.Argument))
		return uint32(int32(i.PC) + int32(i.Size()) + offset), true
	case opcode.RelativeLong:
		offset := int32(int16(i.Argument))
		return uint32(int32(i.PC) + int32(i.Size()) + offset), true
	default:
		return 0, false
	}
}

// LabelResolver looks up the label assigned to an address, if any. Analysis
// implements this to let ArgumentString render symbolic operands.
type LabelResolver interface {
	Label(pc uint32, subroutinePC uint32) (string, bool)
}

// ArgumentString renders the instruction's operand for display. When
// aliased is true, an absolute operand that resolves to an address is
// rendered through resolver (a label); any absolute operand, resolved or
// not, is then looked up in the static hardware register table before
// falling back to a bare hex literal.
func (i Instruction) ArgumentString(resolver LabelResolver, aliased bool) string {
	arg := i.Argument
	switch i.Mode() {
	case opcode.Implied, opcode.ImpliedAccumulator:
		return ""
	case opcode.Immediate8:
		return fmt.Sprintf("#$%02X", arg)
	case opcode.ImmediateM:
		if i.EntryState.SizeA() == 1 {
			return fmt.Sprintf("#$%02X", arg)
		}
		return fmt.Sprintf("#$%04X", arg)
	case opcode.ImmediateX:
		if i.EntryState.SizeX() == 1 {
			return fmt.Sprintf("#$%02X", arg)
		}
		return fmt.Sprintf("#$%04X", arg)
	case opcode.DirectPage:
		return fmt.Sprintf("$%02X", arg)
	case opcode.DirectPageIndexedX:
		return fmt.Sprintf("$%02X,x", arg)
	case opcode.DirectPageIndexedY:
		return fmt.Sprintf("$%02X,y", arg)
	case opcode.DirectPageIndirect, opcode.PeiDirectPageIndirect:
		return fmt.Sprintf("($%02X)", arg)
	case opcode.DirectPageIndirectLong:
		return fmt.Sprintf("[$%02X]", arg)
	case opcode.DirectPageIndexedIndirect:
		return fmt.Sprintf("($%02X,x)", arg)
	case opcode.DirectPageIndirectIndexed:
		return fmt.Sprintf("($%02X),y", arg)
	case opcode.DirectPageIndirectIndexedLong:
		return fmt.Sprintf("[$%02X],y", arg)
	case opcode.Absolute, opcode.Relative, opcode.RelativeLong:
		return i.absoluteOperandString(resolver, aliased, "$%04X", "%s")
	case opcode.AbsoluteLong:
		return i.absoluteOperandString(resolver, aliased, "$%06X", "%s")
	case opcode.AbsoluteIndexedX:
		return i.absoluteOperandString(resolver, aliased, "$%04X,x", "%s,x")
	case opcode.AbsoluteIndexedLong:
		return i.absoluteOperandString(resolver, aliased, "$%06X,x", "%s,x")
	case opcode.AbsoluteIndexedY:
		return i.absoluteOperandString(resolver, aliased, "$%04X,y", "%s,y")
	case opcode.AbsoluteIndirect:
		return fmt.Sprintf("($%04X)", arg)
	case opcode.AbsoluteIndirectLong:
		return fmt.Sprintf("[$%04X]", arg)
	case opcode.AbsoluteIndexedIndirect:
		return fmt.Sprintf("($%04X,x)", arg)
	case opcode.StackAbsolute:
		return fmt.Sprintf("$%04X", arg)
	case opcode.StackRelative:
		return fmt.Sprintf("$%02X,s", arg)
	case opcode.StackRelativeIndirectIndexed:
		return fmt.Sprintf("($%02X,s),y", arg)
	case opcode.Move:
		// operand bytes are [destination bank][source bank] in that order
		dest := arg & 0xFF
		src := (arg >> 8) & 0xFF
		return fmt.Sprintf("$%02X,$%02X", dest, src)
	default:
		return fmt.Sprintf("$%X", arg)
	}
}

// absoluteOperandString renders the operand through a label (only when it
// resolves to an absolute address) or the hardware register table when
// aliased; an operand that does not resolve, such as an indexed one, is
// looked up in the register table by its raw argument. It falls back to
// hexFormat on the raw argument otherwise.
func (i Instruction) absoluteOperandString(resolver LabelResolver, aliased bool, hexFormat, symbolFormat string) string {
	if aliased {
		target, resolved := i.AbsoluteArgument()
		if resolved && resolver != nil {
			if label, ok := resolver.Label(target, i.SubroutinePC); ok {
				return fmt.Sprintf(symbolFormat, label)
			}
		}
		if !resolved {
			target = i.Argument
		}
		if name, ok := HardwareRegisterAlias(target); ok {
			return fmt.Sprintf(symbolFormat, "!"+name)
		}
	}
	return fmt.Sprintf(hexFormat, i.Argument)
}
