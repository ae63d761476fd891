// Package analysis owns the whole-ROM picture: the entry-point set, the
// instruction index, the subroutine map, the reference graph, and the
// user-authored metadata (assertions, jump tables, custom labels,
// comments). It implements cpu.Host so that every CPU walker it spawns
// reports its discoveries back here, and it is the one place allowed to
// mutate derived data.
package analysis

import (
	"fmt"
	"sort"

	"github.com/retroenv/retrogolib/log"

	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/cpu"
	"github.com/retro65816/disasm/internal/instruction"
	"github.com/retro65816/disasm/internal/jumptable"
	"github.com/retro65816/disasm/internal/opcode"
	"github.com/retro65816/disasm/internal/rom"
	"github.com/retro65816/disasm/internal/state"
	"github.com/retro65816/disasm/internal/store"
	"github.com/retro65816/disasm/internal/subroutine"
)

// EntryPoint is a user-declared starting point for exploration: a label,
// the address to start at, and the processor state to assume on entry.
// Equality is by PC alone — adding the same PC twice is a no-op.
type EntryPoint struct {
	Label        string
	PC           uint32
	InitialState state.State
}

type instructionKey struct {
	pc           uint32
	subroutinePC uint32
	st           state.State
}

type reference struct {
	target       uint32
	subroutinePC uint32
}

// Analysis is the top-level owner of both the derived (recomputed every
// Run) and user (persisted) data a ROM analysis accumulates.
type Analysis struct {
	rom    *rom.ROM
	logger *log.Logger

	// User data: survives Run and is the only thing persistence saves.
	entryPoints   map[uint32]EntryPoint
	assertions    map[assertion.PCPair]assertion.Assertion
	customLabels  map[assertion.PCPair]string
	comments      map[assertion.PCPair]string
	jumpTableDefs map[uint32]jumptable.Definition

	// Derived data: cleared and rebuilt by every Run.
	instructions   map[instructionKey]instruction.Instruction
	anyInstruction map[uint32]instruction.Instruction
	subroutines    *store.Manager[*subroutine.Subroutine]
	references     map[uint32][]reference
	referencesTo   map[uint32][]reference
	localLabels    map[uint32]string
	jumpTables     map[uint32]*jumptable.Table
}

// New creates an Analysis over image, seeding the entry-point set with the
// ROM's reset and NMI vectors under the reset processor state.
func New(image *rom.ROM, logger *log.Logger) *Analysis {
	a := &Analysis{
		rom:           image,
		logger:        logger,
		entryPoints:   make(map[uint32]EntryPoint),
		assertions:    make(map[assertion.PCPair]assertion.Assertion),
		customLabels:  make(map[assertion.PCPair]string),
		comments:      make(map[assertion.PCPair]string),
		jumpTableDefs: make(map[uint32]jumptable.Definition),
		subroutines:   store.New[*subroutine.Subroutine](),
	}

	a.AddEntryPoint("reset", image.ResetVector(), state.Reset())
	a.AddEntryPoint("nmi", image.NMIVector(), state.Reset())
	return a
}

// ROM returns the underlying ROM image.
func (a *Analysis) ROM() *rom.ROM {
	return a.rom
}

// Run clears every piece of derived data and re-explores the ROM from
// every entry point, then synthesizes local labels for anything reached
// that isn't itself a subroutine entry.
func (a *Analysis) Run() {
	a.instructions = make(map[instructionKey]instruction.Instruction)
	a.anyInstruction = make(map[uint32]instruction.Instruction)
	a.subroutines.Clear()
	a.references = make(map[uint32][]reference)
	a.referencesTo = make(map[uint32][]reference)
	a.localLabels = make(map[uint32]string)
	a.jumpTables = make(map[uint32]*jumptable.Table)

	a.resolveJumpTableDefinitions()

	for _, pc := range a.sortedEntryPointPCs() {
		ep := a.entryPoints[pc]
		sub := a.AddSubroutine(ep.PC, ep.Label)
		sub.IsEntryPoint = true

		a.logger.Debug("Starting walk from entry point",
			log.String("label", ep.Label), log.Uint32("pc", ep.PC))

		walker := cpu.New(a, ep.PC, ep.PC, ep.InitialState)
		walker.Run()
	}

	a.generateLocalLabels()
}

func (a *Analysis) sortedEntryPointPCs() []uint32 {
	pcs := make([]uint32, 0, len(a.entryPoints))
	for pc := range a.entryPoints {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

// resolveJumpTableDefinitions rebuilds the derived jump-table cache from
// the user-authored definitions, reading each caller's own operand
// directly from ROM (the caller's instruction need not have been decoded
// by a walker yet for this to work, since indirect addressing modes have a
// fixed argument size).
func (a *Analysis) resolveJumpTableDefinitions() {
	for callerPC, def := range a.jumpTableDefs {
		entry := opcode.Lookup(a.rom.ReadByte(callerPC))
		argSize := opcode.ArgumentSize(entry, state.State{})
		operand := a.readROMArgument(callerPC+1, argSize)
		a.jumpTables[callerPC] = jumptable.Resolve(def, callerPC, operand, a.rom.ReadWord)
	}
}

func (a *Analysis) readROMArgument(addr uint32, size int) uint32 {
	var arg uint32
	for n := 0; n < size; n++ {
		arg |= uint32(a.rom.ReadByte(addr+uint32(n))) << (8 * n)
	}
	return arg
}

// --- cpu.Host ---

// ReadByte reads one raw byte from the ROM.
func (a *Analysis) ReadByte(addr uint32) byte {
	return a.rom.ReadByte(addr)
}

// IsRAM reports whether addr names RAM rather than ROM.
func (a *Analysis) IsRAM(addr uint32) bool {
	return rom.IsRAM(addr)
}

// AddInstruction inserts an instruction occurrence keyed by its
// (pc, subroutinePC, state) identity, returning ok=false when that
// identity already existed.
func (a *Analysis) AddInstruction(pc, subroutinePC uint32, op byte, argument uint32, st state.State) (instruction.Instruction, bool) {
	key := instructionKey{pc: pc, subroutinePC: subroutinePC, st: st}
	if existing, ok := a.instructions[key]; ok {
		return existing, false
	}

	inst := instruction.New(pc, subroutinePC, op, argument, st)
	a.instructions[key] = inst
	a.anyInstruction[pc] = inst
	if sub, ok := a.subroutines.Get(subroutinePC); ok {
		sub.AddInstruction(inst)
	}
	return inst, true
}

// AnyInstruction returns a representative instruction previously inserted
// at pc, regardless of which subroutine or state discovered it.
func (a *Analysis) AnyInstruction(pc uint32) (instruction.Instruction, bool) {
	inst, ok := a.anyInstruction[pc]
	return inst, ok
}

// AddReference records a control-transfer edge, in both directions so
// that reverse lookups ("who reaches here?") and label synthesis are both
// O(1) per edge.
func (a *Analysis) AddReference(source, target, subroutinePC uint32) {
	ref := reference{target: target, subroutinePC: subroutinePC}
	a.references[source] = append(a.references[source], ref)
	a.referencesTo[target] = append(a.referencesTo[target], reference{target: source, subroutinePC: subroutinePC})
}

// AddSubroutine idempotently registers a subroutine entry point.
func (a *Analysis) AddSubroutine(pc uint32, label string) *subroutine.Subroutine {
	if sub, ok := a.subroutines.Get(pc); ok {
		return sub
	}
	sub := subroutine.New(pc, label)
	a.subroutines.Set(pc, sub)
	return sub
}

// Subroutine returns the subroutine registered at pc, if any.
func (a *Analysis) Subroutine(pc uint32) *subroutine.Subroutine {
	sub, _ := a.subroutines.Get(pc)
	return sub
}

// ComputeJumpTargets resolves an instruction's control-transfer targets
// directly from its operand when possible, otherwise by consulting the
// jump-table cache: a miss records an Unknown placeholder so the query
// surface can report that the site needs a definition.
func (a *Analysis) ComputeJumpTargets(inst instruction.Instruction) ([]uint32, bool) {
	if target, ok := inst.AbsoluteArgument(); ok {
		return []uint32{target}, true
	}

	table, ok := a.jumpTables[inst.PC]
	if !ok {
		table = jumptable.New(jumptable.Unknown)
		a.jumpTables[inst.PC] = table
	}
	if table.Status == jumptable.Unknown {
		return nil, false
	}
	return table.TargetList(), true
}

// Assertion looks up a user override keyed by (pc, subroutinePC).
func (a *Analysis) Assertion(pc, subroutinePC uint32) (assertion.Assertion, bool) {
	ast, ok := a.assertions[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}]
	return ast, ok
}

// --- mutators (§4.7) ---

// AddEntryPoint inserts pc into the entry-point set under label and
// initialState. A second add at the same pc is a no-op.
func (a *Analysis) AddEntryPoint(label string, pc uint32, initialState state.State) {
	if _, ok := a.entryPoints[pc]; ok {
		return
	}
	if label == "" {
		label = subroutine.DefaultLabel(pc)
	}
	a.entryPoints[pc] = EntryPoint{Label: label, PC: pc, InitialState: initialState}
}

// EntryPoints returns the user-declared entry-point set.
func (a *Analysis) EntryPoints() map[uint32]EntryPoint {
	return a.entryPoints
}

// DefineJumpTable registers (or replaces) the [start, end] byte-offset
// range, relative to the caller instruction's own operand, that resolves
// callerPC's indirect targets. Takes effect on the next Run.
func (a *Analysis) DefineJumpTable(callerPC, start, end uint32, status jumptable.Status) {
	a.jumpTableDefs[callerPC] = jumptable.Definition{Start: start, End: end, Status: status}
}

// UndefineJumpTable removes a jump-table definition. Takes effect on the
// next Run.
func (a *Analysis) UndefineJumpTable(callerPC uint32) {
	delete(a.jumpTableDefs, callerPC)
}

// JumpTableDefinitions returns the user-authored jump-table definitions.
func (a *Analysis) JumpTableDefinitions() map[uint32]jumptable.Definition {
	return a.jumpTableDefs
}

// AddAssertion registers an override at (pc, subroutinePC). Takes effect
// on the next Run.
func (a *Analysis) AddAssertion(pc, subroutinePC uint32, ast assertion.Assertion) {
	a.assertions[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}] = ast
}

// RemoveAssertion removes an override at (pc, subroutinePC).
func (a *Analysis) RemoveAssertion(pc, subroutinePC uint32) {
	delete(a.assertions, assertion.PCPair{PC: pc, SubroutinePC: subroutinePC})
}

// Assertions returns the user-authored assertion set.
func (a *Analysis) Assertions() map[assertion.PCPair]assertion.Assertion {
	return a.assertions
}

// RenameLabel registers a custom label at (pc, subroutinePC). Pass
// subroutinePC 0 to register a label that applies regardless of which
// subroutine reaches pc; Label falls back to that unscoped entry when no
// subroutine-specific override exists.
func (a *Analysis) RenameLabel(newLabel string, pc, subroutinePC uint32) {
	a.customLabels[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}] = newLabel
}

func (a *Analysis) generateLocalLabels() {
	for _, refs := range a.references {
		for _, ref := range refs {
			if a.subroutines.Has(ref.target) {
				continue
			}
			a.localLabels[ref.target] = fmt.Sprintf("loc_%06X", ref.target)
		}
	}
}

// Label resolves the label for (pc, subroutinePC) with precedence custom
// label > subroutine entry label > generated local label > none. It
// implements instruction.LabelResolver.
func (a *Analysis) Label(pc, subroutinePC uint32) (string, bool) {
	if label, ok := a.customLabels[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}]; ok {
		return label, true
	}
	if label, ok := a.customLabels[assertion.PCPair{PC: pc, SubroutinePC: 0}]; ok {
		return label, true
	}
	if sub, ok := a.subroutines.Get(pc); ok {
		return sub.Label, true
	}
	if label, ok := a.localLabels[pc]; ok {
		return label, true
	}
	return "", false
}

// SetComment attaches a display-only comment to (pc, subroutinePC). Pass
// subroutinePC 0 for a comment that applies regardless of subroutine
// context.
func (a *Analysis) SetComment(pc, subroutinePC uint32, text string) {
	a.comments[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}] = text
}

// Comment returns the comment attached to (pc, subroutinePC), falling
// back to an unscoped comment at pc.
func (a *Analysis) Comment(pc, subroutinePC uint32) (string, bool) {
	if text, ok := a.comments[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}]; ok {
		return text, true
	}
	text, ok := a.comments[assertion.PCPair{PC: pc, SubroutinePC: 0}]
	return text, ok
}

// Comments returns the full comment set.
func (a *Analysis) Comments() map[assertion.PCPair]string {
	return a.comments
}

// CustomLabels returns the full custom label set.
func (a *Analysis) CustomLabels() map[assertion.PCPair]string {
	return a.customLabels
}

// UnresolvedSubroutines returns, in ascending PC order, every subroutine
// with at least one exit recorded as an unknown state change.
func (a *Analysis) UnresolvedSubroutines() []uint32 {
	var pcs []uint32
	for pc, sub := range a.subroutines.Items() {
		if sub.HasUnknownStateChanges() {
			pcs = append(pcs, pc)
		}
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

// Statistics summarizes the current analysis for CLI/REPL banners.
type Statistics struct {
	Subroutines     int
	Instructions    int
	UnresolvedCount int
	UnknownByReason map[state.UnknownReason]int
}

// Statistics computes counts of subroutines, instructions, and unresolved
// exits broken down by UnknownReason.
func (a *Analysis) Statistics() Statistics {
	stats := Statistics{
		Subroutines:     a.subroutines.Len(),
		Instructions:    len(a.instructions),
		UnknownByReason: make(map[state.UnknownReason]int),
	}
	for _, sub := range a.subroutines.Items() {
		if sub.HasUnknownStateChanges() {
			stats.UnresolvedCount++
		}
		for _, change := range sub.UnknownStateChanges() {
			stats.UnknownByReason[change.Reason]++
		}
	}
	return stats
}

// Subroutines returns the subroutine store, for query-surface iteration.
func (a *Analysis) Subroutines() *store.Manager[*subroutine.Subroutine] {
	return a.subroutines
}

// InstructionsAt returns every decoded occurrence at pc (the same bytes
// may have been visited under more than one subroutine or entry state).
func (a *Analysis) InstructionsAt(pc uint32) []instruction.Instruction {
	var result []instruction.Instruction
	for key, inst := range a.instructions {
		if key.pc == pc {
			result = append(result, inst)
		}
	}
	return result
}

// ReferencesTo returns every source address that transfers control to pc.
func (a *Analysis) ReferencesTo(pc uint32) []uint32 {
	refs := a.referencesTo[pc]
	result := make([]uint32, 0, len(refs))
	for _, ref := range refs {
		result = append(result, ref.target)
	}
	return result
}

// ReferencesFrom returns every target address pc transfers control to.
func (a *Analysis) ReferencesFrom(pc uint32) []uint32 {
	refs := a.references[pc]
	result := make([]uint32, 0, len(refs))
	for _, ref := range refs {
		result = append(result, ref.target)
	}
	return result
}

// JumpTable returns the resolved jump table for the instruction at pc.
func (a *Analysis) JumpTable(pc uint32) (*jumptable.Table, bool) {
	table, ok := a.jumpTables[pc]
	return table, ok
}

// CalleesOf returns, in ascending order, the distinct subroutine entry
// points referenced by any instruction attributed to subroutinePC: the
// call-graph edges out of that subroutine, regardless of which instruction
// address within it made the reference.
func (a *Analysis) CalleesOf(subroutinePC uint32) []uint32 {
	seen := make(map[uint32]bool)
	var result []uint32
	for _, refs := range a.references {
		for _, ref := range refs {
			if ref.subroutinePC != subroutinePC || seen[ref.target] {
				continue
			}
			if _, ok := a.subroutines.Get(ref.target); !ok {
				continue
			}
			seen[ref.target] = true
			result = append(result, ref.target)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
