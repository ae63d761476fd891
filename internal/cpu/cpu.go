package cpu

import (
	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/instruction"
	"github.com/retro65816/disasm/internal/opcode"
	"github.com/retro65816/disasm/internal/stack"
	"github.com/retro65816/disasm/internal/state"
)

// CPU walks a single control-flow path. Branches, calls and jumps fork the
// walk by spawning a copy that runs to completion before the parent
// continues; this is cooperative recursion on one goroutine, not
// concurrency, and the ordering it produces (fall-through before taken
// branch, every callee explored before its state is propagated) is part of
// the contract external callers may rely on.
type CPU struct {
	host Host

	pc           uint32
	subroutinePC uint32
	st           state.State
	change       state.Change
	inference    state.Change
	stack        *stack.Stack
	stop         bool
}

// New starts a walker at pc, attributed to the subroutine at subroutinePC,
// under the given entry state.
func New(host Host, pc, subroutinePC uint32, st state.State) *CPU {
	return &CPU{
		host:         host,
		pc:           pc,
		subroutinePC: subroutinePC,
		st:           st,
		change:       state.Empty(),
		inference:    state.Empty(),
		stack:        stack.New(),
	}
}

// clone forks the walker for an independent path: same host, same point in
// the code, but an independent copy of everything mutable (state, stack).
func (c *CPU) clone() *CPU {
	return &CPU{
		host:         c.host,
		pc:           c.pc,
		subroutinePC: c.subroutinePC,
		st:           c.st,
		change:       c.change,
		inference:    c.inference,
		stack:        c.stack.Clone(),
	}
}

// Run walks the path to completion.
func (c *CPU) Run() {
	for !c.stop {
		c.step()
	}
}

func (c *CPU) step() {
	if c.host.IsRAM(c.pc) {
		c.unknownStateChange(c.pc, state.MutableCode)
		return
	}

	opByte := c.host.ReadByte(c.pc)
	entry := opcode.Lookup(opByte)
	argSize := opcode.ArgumentSize(entry, c.st)
	argument := c.readArgument(c.pc+1, argSize)

	inst, ok := c.host.AddInstruction(c.pc, c.subroutinePC, opByte, argument, c.st)
	if !ok {
		c.stop = true
		return
	}

	c.pc += uint32(inst.Size())
	c.deriveStateInference(inst)
	c.execute(inst)
}

func (c *CPU) readArgument(addr uint32, size int) uint32 {
	var arg uint32
	for n := 0; n < size; n++ {
		arg |= uint32(c.host.ReadByte(addr+uint32(n))) << (8 * n)
	}
	return arg
}

func (c *CPU) execute(inst instruction.Instruction) {
	switch inst.Type() {
	case opcode.Branch:
		c.branch(inst)
	case opcode.Call:
		c.call(inst)
	case opcode.Interrupt:
		c.unknownStateChange(inst.PC, state.SuspectInstruction)
	case opcode.Jump:
		c.jump(inst)
	case opcode.Return:
		c.ret(inst)
	case opcode.SepRep:
		c.sepRep(inst)
	case opcode.Pop:
		c.pop(inst)
	case opcode.Push:
		c.push(inst)
	}
}

// branch explores the fall-through path to completion first, then takes
// the branch in the current instance.
func (c *CPU) branch(inst instruction.Instruction) {
	target, _ := inst.AbsoluteArgument() // Relative mode always resolves

	fallThrough := c.clone()
	fallThrough.Run()

	c.host.AddReference(inst.PC, target, c.subroutinePC)
	c.pc = target
}

// call resolves the targets of a JSR/JSL, runs each as an independent
// subroutine walk with a return address pushed onto its own stack copy,
// then propagates the callees' combined effect on (m, x) back into this
// path.
func (c *CPU) call(inst instruction.Instruction) {
	targets, ok := c.host.ComputeJumpTargets(inst)
	if !ok {
		c.unknownStateChange(inst.PC, state.IndirectJump)
		return
	}

	retSize := 2
	if inst.Op() == opcode.JSL {
		retSize = 3
	}

	callees := make([]subroutineHandle, 0, len(targets))
	for _, target := range targets {
		sub := c.host.AddSubroutine(target, "")
		c.host.AddReference(inst.PC, target, c.subroutinePC)

		callee := c.clone()
		callee.pc = target
		callee.subroutinePC = target
		callee.change = state.Empty()
		callee.stack.Push(inst.PC, retSize)
		callee.Run()

		callees = append(callees, sub)
	}

	c.propagateSubroutineState(inst.PC, callees)
}

// jump resolves the targets of a JMP/JML/BRA/BRL, runs each from the
// current path's own state (unlike a call, a jump does not fork a fresh
// subroutine context), and then stops: the jump itself has no further
// local continuation.
func (c *CPU) jump(inst instruction.Instruction) {
	targets, ok := c.host.ComputeJumpTargets(inst)
	if !ok {
		c.unknownStateChange(inst.PC, state.IndirectJump)
		return
	}

	for _, target := range targets {
		c.host.AddReference(inst.PC, target, c.subroutinePC)

		branch := c.clone()
		branch.pc = target
		branch.Run()
	}

	c.stop = true
}

func (c *CPU) ret(inst instruction.Instruction) {
	if inst.Op() == opcode.RTI {
		c.standardReturn(inst.PC)
		return
	}

	retSize, wantOp := 2, opcode.JSR
	if inst.Op() == opcode.RTL {
		retSize, wantOp = 3, opcode.JSL
	}

	manipulated := false
	for _, entry := range c.stack.Pop(retSize) {
		if entry.Unknown {
			manipulated = true
			break
		}
		producer, found := c.host.AnyInstruction(entry.Producer)
		if !found || producer.Op() != wantOp {
			manipulated = true
			break
		}
	}

	if manipulated {
		c.unknownStateChange(inst.PC, state.StackManipulation)
		return
	}
	c.standardReturn(inst.PC)
}

func (c *CPU) standardReturn(exitPC uint32) {
	c.host.Subroutine(c.subroutinePC).AddStateChange(exitPC, c.change)
	c.stop = true
}

func (c *CPU) sepRep(inst instruction.Instruction) {
	arg := byte(inst.Argument)
	switch inst.Op() {
	case opcode.SEP:
		c.st = c.st.Set(arg)
		c.change = c.change.Set(arg)
	case opcode.REP:
		c.st = c.st.Reset(arg)
		c.change = c.change.Reset(arg)
	}
	c.change = c.change.ApplyInference(c.inference)
}

func (c *CPU) pop(inst instruction.Instruction) {
	switch inst.Op() {
	case opcode.PLP:
		entry := c.stack.PopOne()
		if entry.IsStateSnapshot {
			c.st = entry.SnapshotState
			c.change = entry.SnapshotChange
		} else {
			c.unknownStateChange(inst.PC, state.StackManipulation)
		}
	case opcode.PLA:
		c.stack.Pop(c.st.SizeA())
	case opcode.PLX, opcode.PLY:
		c.stack.Pop(c.st.SizeX())
	case opcode.PLB:
		c.stack.Pop(1)
	case opcode.PLD:
		c.stack.Pop(2)
	}
}

func (c *CPU) push(inst instruction.Instruction) {
	switch inst.Op() {
	case opcode.PHP:
		c.stack.PushState(inst.PC, c.st, c.change)
	case opcode.PHA:
		c.stack.PushUnknown(c.st.SizeA())
	case opcode.PHX, opcode.PHY:
		c.stack.PushUnknown(c.st.SizeX())
	case opcode.PHB, opcode.PHK:
		c.stack.PushUnknown(1)
	case opcode.PHD, opcode.PEA, opcode.PER, opcode.PEI:
		c.stack.PushUnknown(2)
	}
}

// deriveStateInference notices that successfully decoding a #m/#x operand
// requires the corresponding flag to have had its current value on entry,
// provided this path has not already committed to changing that flag.
func (c *CPU) deriveStateInference(inst instruction.Instruction) {
	if inst.Mode() == opcode.ImmediateM && c.change.M == nil {
		v := c.st.M
		c.inference.M = &v
	}
	if inst.Mode() == opcode.ImmediateX && c.change.X == nil {
		v := c.st.X
		c.inference.X = &v
	}
}

// applyStateChange sets both the live state and the recorded delta for
// every flag ch carries, leaving flags ch does not mention untouched.
func (c *CPU) applyStateChange(ch state.Change) {
	if ch.M != nil {
		c.st.M = *ch.M
		v := *ch.M
		c.change.M = &v
	}
	if ch.X != nil {
		c.st.X = *ch.X
		v := *ch.X
		c.change.X = &v
	}
}

// subroutineHandle is the minimal view call() needs of a callee once it has
// finished running, to decide how its effect on (m, x) propagates back.
type subroutineHandle interface {
	HasUnknownStateChanges() bool
	SimplifiedStateChanges(callerState state.State) []state.Change
}

// propagateSubroutineState merges the callees' known exit-state deltas
// (simplified against this path's current state) into a single delta and
// applies it, or raises Unknown/MultipleReturnStates when that is not
// possible.
func (c *CPU) propagateSubroutineState(pc uint32, callees []subroutineHandle) {
	seen := make(map[state.Key]state.Change)
	for _, sub := range callees {
		if sub.HasUnknownStateChanges() {
			c.unknownStateChange(pc, state.Unknown)
			return
		}
		for _, change := range sub.SimplifiedStateChanges(c.st) {
			seen[change.Key()] = change
		}
	}

	if len(seen) != 1 {
		c.unknownStateChange(pc, state.MultipleReturnStates)
		return
	}
	for _, change := range seen {
		c.applyStateChange(change)
	}
}

// unknownStateChange is the central "cannot continue soundly" handler: it
// consults an assertion at (pc, subroutinePC) before giving up.
func (c *CPU) unknownStateChange(pc uint32, reason state.UnknownReason) {
	if a, ok := c.host.Assertion(pc, c.subroutinePC); ok {
		switch a.Type {
		case assertion.InstructionScope:
			c.applyStateChange(a.Change)
			return
		case assertion.SubroutineScope:
			c.host.Subroutine(c.subroutinePC).AddStateChange(pc, a.Change)
			c.stop = true
			return
		}
	}
	c.host.Subroutine(c.subroutinePC).AddStateChange(pc, state.FromUnknown(reason))
	c.stop = true
}
