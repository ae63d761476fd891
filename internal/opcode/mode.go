// Package opcode provides the static 65816 opcode-to-operation tables: which
// operation and addressing mode each of the 256 opcode bytes represents, and
// how large each addressing mode's argument is.
package opcode

// Mode identifies a 65816 addressing mode.
type Mode int

const (
	Implied Mode = iota
	ImpliedAccumulator
	ImmediateM // size depends on accumulator width (state.m)
	ImmediateX // size depends on index width (state.x)
	Immediate8
	DirectPage
	DirectPageIndexedX
	DirectPageIndexedY
	DirectPageIndirect
	DirectPageIndirectLong
	DirectPageIndexedIndirect
	DirectPageIndirectIndexed
	DirectPageIndirectIndexedLong
	PeiDirectPageIndirect
	Absolute
	AbsoluteLong
	AbsoluteIndexedX
	AbsoluteIndexedLong
	AbsoluteIndexedY
	AbsoluteIndirect
	AbsoluteIndirectLong
	AbsoluteIndexedIndirect
	Relative
	RelativeLong
	StackAbsolute
	StackRelative
	StackRelativeIndirectIndexed
	Move
)

// fixedArgumentSizes gives the operand size in bytes for every addressing
// mode whose size does not depend on processor state. ImmediateM and
// ImmediateX are absent here and must be resolved against a State.
var fixedArgumentSizes = map[Mode]int{
	Implied:                        0,
	ImpliedAccumulator:             0,
	Immediate8:                     1,
	DirectPage:                     1,
	DirectPageIndexedX:             1,
	DirectPageIndexedY:             1,
	DirectPageIndirect:             1,
	DirectPageIndirectLong:         1,
	DirectPageIndexedIndirect:      1,
	DirectPageIndirectIndexed:      1,
	DirectPageIndirectIndexedLong:  1,
	PeiDirectPageIndirect:          1,
	Absolute:                       2,
	AbsoluteLong:                   3,
	AbsoluteIndexedX:               2,
	AbsoluteIndexedLong:            3,
	AbsoluteIndexedY:               2,
	AbsoluteIndirect:               2,
	AbsoluteIndirectLong:           2,
	AbsoluteIndexedIndirect:        2,
	Relative:                       1,
	RelativeLong:                   2,
	StackAbsolute:                  2,
	StackRelative:                  1,
	StackRelativeIndirectIndexed:   1,
	Move:                           2,
}

// FixedArgumentSize returns the operand size for m, and whether the mode has
// a fixed (state-independent) size at all.
func FixedArgumentSize(m Mode) (int, bool) {
	size, ok := fixedArgumentSizes[m]
	return size, ok
}
