package opcode

import "github.com/retro65816/disasm/internal/state"

// ArgumentSize returns the operand size in bytes of entry when decoded under
// s. ImmediateM varies with the accumulator width and ImmediateX with the
// index width; every other mode has a fixed size.
func ArgumentSize(e Entry, s state.State) int {
	switch e.Mode {
	case ImmediateM:
		return s.SizeA()
	case ImmediateX:
		return s.SizeX()
	default:
		size, ok := FixedArgumentSize(e.Mode)
		if !ok {
			return 0
		}
		return size
	}
}

// Size returns the total instruction size in bytes (opcode byte plus
// operand) of entry when decoded under s.
func Size(e Entry, s state.State) int {
	return 1 + ArgumentSize(e, s)
}
