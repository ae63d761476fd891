// Package query exposes the read-only external query surface over an
// Analysis: subroutines, per-address instructions, references, labels,
// assertions, jump tables, and comments. Edits go through Analysis's own
// mutators followed by Run; this package never mutates anything.
package query

import (
	"github.com/retro65816/disasm/internal/analysis"
	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/instruction"
	"github.com/retro65816/disasm/internal/jumptable"
	"github.com/retro65816/disasm/internal/render"
	"github.com/retro65816/disasm/internal/subroutine"
)

// Surface is a thin, read-only view over an Analysis.
type Surface struct {
	a *analysis.Analysis
}

// New wraps a for querying.
func New(a *analysis.Analysis) Surface {
	return Surface{a: a}
}

// Subroutines returns every subroutine discovered by the last Run, in
// ascending PC order.
func (s Surface) Subroutines() []*subroutine.Subroutine {
	return s.a.Subroutines().SortedByAddress(func(sub *subroutine.Subroutine) uint32 { return sub.PC })
}

// InstructionsAt returns every decoded occurrence at pc.
func (s Surface) InstructionsAt(pc uint32) []instruction.Instruction {
	return s.a.InstructionsAt(pc)
}

// ReferencesTo returns every address that transfers control to pc.
func (s Surface) ReferencesTo(pc uint32) []uint32 {
	return s.a.ReferencesTo(pc)
}

// Label resolves the label for pc under subroutinePC's context (pass 0 for
// no subroutine-specific scoping).
func (s Surface) Label(pc, subroutinePC uint32) (string, bool) {
	return s.a.Label(pc, subroutinePC)
}

// Assertion looks up the user override registered at (pc, subroutinePC).
func (s Surface) Assertion(pc, subroutinePC uint32) (assertion.Assertion, bool) {
	return s.a.Assertion(pc, subroutinePC)
}

// JumpTable returns the resolved jump table for the instruction at pc.
func (s Surface) JumpTable(pc uint32) (*jumptable.Table, bool) {
	return s.a.JumpTable(pc)
}

// Comment returns the comment attached to (pc, subroutinePC).
func (s Surface) Comment(pc, subroutinePC uint32) (string, bool) {
	return s.a.Comment(pc, subroutinePC)
}

// Statistics summarizes the current analysis.
func (s Surface) Statistics() analysis.Statistics {
	return s.a.Statistics()
}

// UnresolvedSubroutines returns every subroutine with at least one exit
// recorded as an unknown state change.
func (s Surface) UnresolvedSubroutines() []uint32 {
	return s.a.UnresolvedSubroutines()
}

// CallGraphTree renders the call graph reachable from root as an indented
// tree, delegating to the render package.
func (s Surface) CallGraphTree(root uint32) string {
	return render.CallGraphTree(s.a, root)
}
