package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/instruction"
	"github.com/retro65816/disasm/internal/state"
	"github.com/retro65816/disasm/internal/subroutine"
)

// fakeHost is a minimal, in-memory Host used to unit-test the walker's
// control-flow semantics without a real ROM or Analysis.
type fakeHost struct {
	memory      map[uint32]byte
	ramFrom     uint32
	ramTo       uint32
	identities  map[instructionIdentity]instruction.Instruction
	anyByPC     map[uint32]instruction.Instruction
	subroutines map[uint32]*subroutine.Subroutine
	references  map[uint32][]reference
	jumpTargets map[uint32][]uint32 // keyed by instruction pc, for indirect sites
	assertions  map[assertion.PCPair]assertion.Assertion
}

type instructionIdentity struct {
	pc           uint32
	subroutinePC uint32
	st           state.State
}

type reference struct {
	target       uint32
	subroutinePC uint32
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		memory:      make(map[uint32]byte),
		identities:  make(map[instructionIdentity]instruction.Instruction),
		anyByPC:     make(map[uint32]instruction.Instruction),
		subroutines: make(map[uint32]*subroutine.Subroutine),
		references:  make(map[uint32][]reference),
		jumpTargets: make(map[uint32][]uint32),
		assertions:  make(map[assertion.PCPair]assertion.Assertion),
	}
}

func (h *fakeHost) load(addr uint32, bytes ...byte) {
	for i, b := range bytes {
		h.memory[addr+uint32(i)] = b
	}
}

func (h *fakeHost) ReadByte(addr uint32) byte {
	return h.memory[addr]
}

func (h *fakeHost) IsRAM(addr uint32) bool {
	return h.ramFrom != 0 && addr >= h.ramFrom && addr <= h.ramTo
}

func (h *fakeHost) AddInstruction(pc, subroutinePC uint32, opcode byte, argument uint32, st state.State) (instruction.Instruction, bool) {
	id := instructionIdentity{pc, subroutinePC, st}
	if existing, ok := h.identities[id]; ok {
		return existing, false
	}
	inst := instruction.New(pc, subroutinePC, opcode, argument, st)
	h.identities[id] = inst
	h.anyByPC[pc] = inst
	if sub, ok := h.subroutines[subroutinePC]; ok {
		sub.AddInstruction(inst)
	}
	return inst, true
}

func (h *fakeHost) AnyInstruction(pc uint32) (instruction.Instruction, bool) {
	inst, ok := h.anyByPC[pc]
	return inst, ok
}

func (h *fakeHost) AddReference(source, target, subroutinePC uint32) {
	h.references[source] = append(h.references[source], reference{target, subroutinePC})
}

func (h *fakeHost) AddSubroutine(pc uint32, label string) *subroutine.Subroutine {
	if sub, ok := h.subroutines[pc]; ok {
		return sub
	}
	sub := subroutine.New(pc, label)
	h.subroutines[pc] = sub
	return sub
}

func (h *fakeHost) Subroutine(pc uint32) *subroutine.Subroutine {
	return h.subroutines[pc]
}

func (h *fakeHost) ComputeJumpTargets(inst instruction.Instruction) ([]uint32, bool) {
	if target, ok := inst.AbsoluteArgument(); ok {
		return []uint32{target}, true
	}
	targets, ok := h.jumpTargets[inst.PC]
	return targets, ok
}

func (h *fakeHost) Assertion(pc, subroutinePC uint32) (assertion.Assertion, bool) {
	a, ok := h.assertions[assertion.PCPair{PC: pc, SubroutinePC: subroutinePC}]
	return a, ok
}

func TestInfiniteLoop(t *testing.T) {
	t.Run("JMP to self discovers exactly one instruction and one reference", func(t *testing.T) {
		h := newFakeHost()
		h.load(0x8000, 0x4C, 0x00, 0x80) // JMP $8000
		h.AddSubroutine(0x8000, "reset")

		c := New(h, 0x8000, 0x8000, state.Reset())
		c.Run()

		assert.Len(t, h.anyByPC, 1)
		assert.Len(t, h.references[0x8000], 1)
		assert.Equal(t, uint32(0x8000), h.references[0x8000][0].target)
	})
}

func TestBranchOrdering(t *testing.T) {
	t.Run("fall-through path runs to completion before the branch is taken", func(t *testing.T) {
		h := newFakeHost()
		// 8000: BEQ +4 (to 8006)   -> fall-through at 8002
		// 8002: NOP ; JMP 8003     (fall-through path, then loops)
		// 8006: NOP ; JMP 8007     (branch target, infinite loop)
		h.load(0x8000, 0xF0, 0x04)
		h.load(0x8002, 0xEA)
		h.load(0x8003, 0x4C, 0x03, 0x80) // JMP $8003 (loops on itself, stops fall-through path)
		h.load(0x8006, 0xEA)
		h.load(0x8007, 0x4C, 0x07, 0x80) // JMP $8007
		h.AddSubroutine(0x8000, "reset")

		c := New(h, 0x8000, 0x8000, state.Reset())
		c.Run()

		_, sawFallThrough := h.anyByPC[0x8002]
		_, sawBranch := h.anyByPC[0x8006]
		assert.True(t, sawFallThrough)
		assert.True(t, sawBranch)
	})
}

func TestSepRepWithInference(t *testing.T) {
	t.Run("LDA immediate before any REP infers m, eliding a later SEP back to the entry value", func(t *testing.T) {
		h := newFakeHost()
		// 8000: JSR $8010; 8003: JMP $8003 (caller, so the RTS has a return address)
		// 8010: LDA #$56 (8-bit, m not yet changed -> infers m=1 on entry);
		// REP #$20 (m=0); SEP #$20 (m=1, matches the inference -> elided); RTS
		h.load(0x8000, 0x20, 0x10, 0x80)
		h.load(0x8003, 0x4C, 0x03, 0x80)
		h.load(0x8010, 0xA9, 0x56)
		h.load(0x8012, 0xC2, 0x20)
		h.load(0x8014, 0xE2, 0x20)
		h.load(0x8016, 0x60)
		h.AddSubroutine(0x8000, "reset")

		c := New(h, 0x8000, 0x8000, state.New(true, true))
		c.Run()

		sub := h.Subroutine(0x8010)
		assert.Len(t, sub.KnownStateChanges(), 1)
		for _, ch := range sub.KnownStateChanges() {
			assert.True(t, ch.IsEmpty())
		}
	})
}

func TestPushPullProcessorStatus(t *testing.T) {
	t.Run("PHP then mutate then PLP restores the entry state", func(t *testing.T) {
		h := newFakeHost()
		// 8000: JSR $8010; 8003: JMP $8003 (caller, so the RTS has a return address)
		// 8010: PHP; REP #$20; LDA #$3456; PLP; RTS
		h.load(0x8000, 0x20, 0x10, 0x80)
		h.load(0x8003, 0x4C, 0x03, 0x80)
		h.load(0x8010, 0x08)
		h.load(0x8011, 0xC2, 0x20)
		h.load(0x8013, 0xA9, 0x56, 0x34)
		h.load(0x8016, 0x28)
		h.load(0x8017, 0x60)
		h.AddSubroutine(0x8000, "reset")

		c := New(h, 0x8000, 0x8000, state.New(true, true))
		c.Run()

		sub := h.Subroutine(0x8010)
		assert.Len(t, sub.KnownStateChanges(), 1)
		for _, ch := range sub.KnownStateChanges() {
			assert.True(t, ch.IsEmpty())
		}
	})
}

func TestIndirectJumpWithoutTable(t *testing.T) {
	t.Run("unresolved indirect jump raises IndirectJump on the enclosing subroutine", func(t *testing.T) {
		h := newFakeHost()
		h.load(0x8000, 0x6C, 0x00, 0x90) // JMP ($9000)
		h.AddSubroutine(0x8000, "sub")

		c := New(h, 0x8000, 0x8000, state.Reset())
		c.Run()

		sub := h.Subroutine(0x8000)
		assert.Len(t, sub.UnknownStateChanges(), 1)
		for _, ch := range sub.UnknownStateChanges() {
			assert.Equal(t, state.IndirectJump, ch.Reason)
		}
	})
}

func TestStackManipulation(t *testing.T) {
	t.Run("popping two unproduced bytes before RTS is reported as manipulation", func(t *testing.T) {
		h := newFakeHost()
		// PLA; RTS, with nothing ever pushed
		h.load(0x8000, 0x68)
		h.load(0x8001, 0x60)
		h.AddSubroutine(0x8000, "sub")

		c := New(h, 0x8000, 0x8000, state.New(true, true))
		c.Run()

		sub := h.Subroutine(0x8000)
		assert.Len(t, sub.UnknownStateChanges(), 1)
		for _, ch := range sub.UnknownStateChanges() {
			assert.Equal(t, state.StackManipulation, ch.Reason)
		}
	})

	t.Run("a JSR-produced return address is consumed cleanly by RTS", func(t *testing.T) {
		h := newFakeHost()
		// 8000: JSR $8010
		// 8003: JMP $8003 (loop, so the caller path terminates predictably)
		// 8010: RTS
		h.load(0x8000, 0x20, 0x10, 0x80)
		h.load(0x8003, 0x4C, 0x03, 0x80)
		h.load(0x8010, 0x60)
		h.AddSubroutine(0x8000, "reset")

		c := New(h, 0x8000, 0x8000, state.Reset())
		c.Run()

		callee := h.Subroutine(0x8010)
		assert.NotNil(t, callee)
		assert.Len(t, callee.UnknownStateChanges(), 0)
	})
}

func TestAssertionResolvesUnknown(t *testing.T) {
	t.Run("an instruction-scoped assertion applies its delta and continues the path", func(t *testing.T) {
		h := newFakeHost()
		h.load(0x8000, 0x6C, 0x00, 0x90) // JMP ($9000), unresolved
		h.load(0x8003, 0x4C, 0x03, 0x80) // JMP $8003, reached after the assertion
		h.AddSubroutine(0x8000, "sub")
		trueVal := true
		h.assertions[assertion.PCPair{PC: 0x8000, SubroutinePC: 0x8000}] = assertion.Assertion{
			Type:   assertion.InstructionScope,
			Change: state.Change{M: &trueVal},
		}

		c := New(h, 0x8000, 0x8000, state.Reset())
		c.Run()

		// with an instruction-scope assertion the path keeps running past the
		// unresolved JMP into the bytes that follow it (here a self-loop that
		// ends the walk), and no unknown state change is recorded on the
		// subroutine.
		sub := h.Subroutine(0x8000)
		assert.Len(t, sub.UnknownStateChanges(), 0)
	})

	t.Run("a subroutine-scoped assertion records the asserted delta and stops", func(t *testing.T) {
		h := newFakeHost()
		h.load(0x8000, 0x6C, 0x00, 0x90)
		h.AddSubroutine(0x8000, "sub")
		falseVal := false
		h.assertions[assertion.PCPair{PC: 0x8000, SubroutinePC: 0x8000}] = assertion.Assertion{
			Type:   assertion.SubroutineScope,
			Change: state.Change{X: &falseVal},
		}

		c := New(h, 0x8000, 0x8000, state.Reset())
		c.Run()

		sub := h.Subroutine(0x8000)
		assert.Len(t, sub.KnownStateChanges(), 1)
	})
}
