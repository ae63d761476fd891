// Package assertion models user-authored overrides that resolve an
// otherwise-unknown state change at a specific site.
package assertion

import "github.com/retro65816/disasm/internal/state"

// PCPair keys an assertion (or a custom label) by the instruction site and
// the subroutine it was reached under, since the same bytes can be walked
// under more than one subroutine context.
type PCPair struct {
	PC           uint32
	SubroutinePC uint32
}

// Type distinguishes the scope an assertion applies at.
type Type int

const (
	// InstructionScope overwrites the local state after executing the
	// asserted site, and the walk continues.
	InstructionScope Type = iota
	// SubroutineScope terminates the walk at the asserted site and
	// attributes the given change to the enclosing subroutine.
	SubroutineScope
)

// Assertion is a user override: apply Change with the semantics of Type.
type Assertion struct {
	Type   Type
	Change state.Change
}
