package analysis

import (
	"testing"

	"github.com/retroenv/retrogolib/log"

	"github.com/stretchr/testify/assert"

	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/jumptable"
	"github.com/retro65816/disasm/internal/rom"
	"github.com/retro65816/disasm/internal/state"
)

// translateLoROMAddr mirrors rom's own LoROM formula so test fixtures can
// place code bytes at the file offset a given SNES address resolves to.
func translateLoROMAddr(addr uint32) uint32 {
	return ((addr & 0x7F0000) >> 1) | (addr & 0x7FFF)
}

// buildROM assembles a minimal LoROM image with a printable title, the given
// reset/NMI vectors, and code bytes poked in at their SNES addresses.
func buildROM(t *testing.T, reset, nmi uint16, code map[uint32][]byte) *rom.ROM {
	t.Helper()

	data := make([]byte, 0x10000)
	copy(data[0x7FC0:], "TEST")
	data[0x7FFC] = byte(reset)
	data[0x7FFD] = byte(reset >> 8)
	data[0x7FEA] = byte(nmi)
	data[0x7FEB] = byte(nmi >> 8)

	for addr, bytes := range code {
		offset := translateLoROMAddr(addr)
		copy(data[offset:], bytes)
	}

	r, err := rom.New(data)
	assert.NoError(t, err)
	return r
}

// newAnalysisAt builds an Analysis whose reset vector is the only entry
// point exercised by a scenario: the NMI vector is pointed at the same PC so
// a single walk covers both, keeping scenario assertions free of a second,
// incidental subroutine.
func newAnalysisAt(t *testing.T, pc uint32, code map[uint32][]byte) *Analysis {
	t.Helper()
	r := buildROM(t, uint16(pc), uint16(pc), code)
	return New(r, log.NewTestLogger(t))
}

func TestE1InfiniteLoop(t *testing.T) {
	t.Run("a JMP to itself terminates the walk without looping forever", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, map[uint32][]byte{
			0x8000: {0x4C, 0x00, 0x80}, // JMP $8000
		})
		a.Run()

		sub := a.Subroutine(0x8000)
		assert.True(t, sub != nil)
		assert.Len(t, sub.Instructions(), 1)
		assert.False(t, sub.HasUnknownStateChanges())

		targets := a.ReferencesFrom(0x8000)
		assert.Equal(t, []uint32{0x8000}, targets)
	})
}

func TestE2PlainStateChange(t *testing.T) {
	t.Run("a callee's REP propagates back and widens the caller's immediates", func(t *testing.T) {
		code := map[uint32][]byte{
			0x8000: {0xE2, 0x30},       // SEP #$30
			0x8002: {0x20, 0x0E, 0x80}, // JSR $800E
			0x8005: {0xA9, 0x34, 0x12}, // LDA #$1234 (16-bit: m was widened by the callee)
			0x8008: {0xA2, 0x34, 0x12}, // LDX #$1234 (16-bit: x was widened by the callee)
			0x800B: {0x4C, 0x0B, 0x80}, // JMP $800B
			0x800E: {0xC2, 0x30},       // REP #$30
			0x8010: {0x60},             // RTS
		}
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		reset := a.Subroutine(0x8000)
		assert.True(t, reset != nil)
		assert.False(t, reset.HasUnknownStateChanges())

		lda, ok := a.AnyInstruction(0x8005)
		assert.True(t, ok)
		assert.Equal(t, 3, lda.Size()) // decoded 16-bit wide, per the propagated state

		callee := a.Subroutine(0x800E)
		assert.True(t, callee != nil)
		assert.Len(t, callee.KnownStateChanges(), 1)
	})
}

func TestE3ElidableStateChange(t *testing.T) {
	t.Run("a REP/SEP pair that restores the entry state elides to no change", func(t *testing.T) {
		// The subroutine is reached through a JSR so that its RTS has a
		// return address to consume.
		code := map[uint32][]byte{
			0x8000: {0x20, 0x06, 0x80}, // JSR $8006
			0x8003: {0x4C, 0x03, 0x80}, // JMP $8003
			0x8006: {0xC2, 0x20},       // REP #$20 (widen accumulator)
			0x8008: {0xA9, 0x56, 0x34}, // LDA #$3456 (16-bit)
			0x800B: {0xE2, 0x20},       // SEP #$20 (back to 8-bit)
			0x800D: {0x60},             // RTS
		}
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		sub := a.Subroutine(0x8006)
		assert.True(t, sub != nil)
		assert.False(t, sub.HasUnknownStateChanges())

		changes := sub.SimplifiedStateChanges(state.Reset())
		assert.Len(t, changes, 1)
		assert.True(t, changes[0].IsEmpty())
	})
}

func TestE4PhpPlpPreservesState(t *testing.T) {
	t.Run("PHP/mutate/PLP around a body leaves the caller's state untouched", func(t *testing.T) {
		// The subroutine is reached through a JSR so that its RTS has a
		// return address to consume.
		code := map[uint32][]byte{
			0x8000: {0x20, 0x06, 0x80}, // JSR $8006
			0x8003: {0x4C, 0x03, 0x80}, // JMP $8003
			0x8006: {0x08},             // PHP
			0x8007: {0xC2, 0x30},       // REP #$30
			0x8009: {0xA9, 0x34, 0x12}, // LDA #$1234 (16-bit, inside the saved region)
			0x800C: {0x28},             // PLP
			0x800D: {0x60},             // RTS
		}
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		sub := a.Subroutine(0x8006)
		assert.True(t, sub != nil)
		assert.False(t, sub.HasUnknownStateChanges())
		assert.True(t, sub.SavesStateInIncipit())

		changes := sub.SimplifiedStateChanges(state.Reset())
		assert.Len(t, changes, 1)
		assert.True(t, changes[0].IsEmpty())
	})
}

func TestE5IndirectJumpWithoutTable(t *testing.T) {
	code := map[uint32][]byte{
		0x8000: {0x6C, 0x00, 0x90}, // JMP ($9000)
		0x9000: {0x00, 0x81},       // dw $8100
		0x9002: {0x00, 0x82},       // dw $8200
		0x8100: {0x4C, 0x00, 0x81}, // JMP $8100 (self-loop sink, no stack touched)
		0x8200: {0x4C, 0x00, 0x82}, // JMP $8200
	}

	t.Run("an undefined jump table leaves the site unresolved", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		sub := a.Subroutine(0x8000)
		assert.True(t, sub != nil)
		assert.True(t, sub.HasUnknownStateChanges())
		assert.True(t, sub.IsUnknownBecauseOf(state.IndirectJump))
	})

	t.Run("defining the table and re-running discovers both targets", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()
		assert.True(t, a.Subroutine(0x8000).HasUnknownStateChanges())

		a.DefineJumpTable(0x8000, 0, 2, jumptable.Complete)
		a.Run()

		sub := a.Subroutine(0x8000)
		assert.False(t, sub.HasUnknownStateChanges())

		// Jump (not call) targets are explored within the jumping
		// instruction's own subroutine context, not registered as
		// subroutines of their own.
		_, at8100 := a.AnyInstruction(0x8100)
		_, at8200 := a.AnyInstruction(0x8200)
		assert.True(t, at8100)
		assert.True(t, at8200)
		assert.True(t, a.Subroutine(0x8100) == nil)
		assert.True(t, a.Subroutine(0x8200) == nil)

		for _, pc := range []uint32{0x8100, 0x8200} {
			_, found := sub.Instructions()[pc]
			assert.True(t, found)
		}

		table, ok := a.JumpTable(0x8000)
		assert.True(t, ok)
		assert.Equal(t, jumptable.Complete, table.Status)
		assert.Len(t, table.TargetList(), 2)
	})
}

func TestE6StackManipulation(t *testing.T) {
	t.Run("a PLA before RTS that consumes an unproduced byte is unresolved", func(t *testing.T) {
		code := map[uint32][]byte{
			0x8000: {0x68}, // PLA, with nothing pushed
			0x8001: {0x60}, // RTS
		}
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		sub := a.Subroutine(0x8000)
		assert.True(t, sub != nil)
		assert.True(t, sub.HasUnknownStateChanges())
		assert.True(t, sub.IsUnknownBecauseOf(state.StackManipulation))
	})

	t.Run("a return address produced by JSR and consumed cleanly by RTS resolves", func(t *testing.T) {
		// The caller's own trailing RTS is deliberately avoided here: it
		// would pop from the caller's own (never-fed) stack and raise
		// StackManipulation itself, since the reset entry point has no
		// real caller on the model's stack. Only the callee's RTS, fed by
		// JSR's pushed return address, is under test.
		code := map[uint32][]byte{
			0x8000: {0x20, 0x04, 0x80}, // JSR $8004
			0x8003: {0x4C, 0x03, 0x80}, // JMP $8003
			0x8004: {0x60},             // RTS
		}
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		reset := a.Subroutine(0x8000)
		assert.True(t, reset != nil)
		assert.False(t, reset.HasUnknownStateChanges())

		callee := a.Subroutine(0x8004)
		assert.True(t, callee != nil)
		assert.False(t, callee.HasUnknownStateChanges())
	})
}

func TestInvariants(t *testing.T) {
	code := map[uint32][]byte{
		0x8000: {0xE2, 0x30},       // SEP #$30
		0x8002: {0x20, 0x0E, 0x80}, // JSR $800E
		0x8005: {0xA9, 0x34, 0x12}, // LDA #$1234
		0x8008: {0xA2, 0x34, 0x12}, // LDX #$1234
		0x800B: {0x4C, 0x0B, 0x80}, // JMP $800B
		0x800E: {0xC2, 0x30},       // REP #$30
		0x8010: {0x60},             // RTS
	}

	t.Run("re-running from scratch reproduces an identical instruction set", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()
		first := len(a.instructions)

		a.Run()
		second := len(a.instructions)
		assert.Equal(t, first, second)
	})

	t.Run("every instruction occurrence is attributed to a registered subroutine", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, code)
		a.Run()

		for key := range a.instructions {
			sub := a.Subroutine(key.subroutinePC)
			assert.True(t, sub != nil)
		}
	})

	t.Run("an assertion at instruction scope resolves an otherwise-unknown site and the walk continues", func(t *testing.T) {
		// RTS at $8001 pops against a stack that was never fed a return
		// address, so it would normally raise StackManipulation there
		// (PLA itself does not check what it pops). The assertion
		// overrides that exit and execution falls through the raw bytes
		// that follow, down to the self-loop at $8002.
		a := newAnalysisAt(t, 0x8000, map[uint32][]byte{
			0x8000: {0x68},             // PLA, nothing pushed
			0x8001: {0x60},             // RTS: unresolved without the assertion
			0x8002: {0x4C, 0x02, 0x80}, // JMP $8002
		})

		trueVal := true
		a.AddAssertion(0x8001, 0x8000, assertion.Assertion{
			Type:   assertion.InstructionScope,
			Change: state.Change{M: &trueVal},
		})
		a.Run()

		sub := a.Subroutine(0x8000)
		assert.False(t, sub.HasUnknownStateChanges())
		_, ok := a.AnyInstruction(0x8002)
		assert.True(t, ok)
	})

	t.Run("a subroutine-scope assertion stops the walk and records the asserted change", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, map[uint32][]byte{
			0x8000: {0x68},             // PLA, nothing pushed
			0x8001: {0x60},             // RTS: unresolved without the assertion
			0x8002: {0x4C, 0x02, 0x80}, // JMP $8002, never reached under the assertion
		})

		a.AddAssertion(0x8001, 0x8000, assertion.Assertion{
			Type:   assertion.SubroutineScope,
			Change: state.Empty(),
		})
		a.Run()

		sub := a.Subroutine(0x8000)
		assert.False(t, sub.HasUnknownStateChanges())
		assert.Len(t, sub.KnownStateChanges(), 1)
		_, ok := a.AnyInstruction(0x8002)
		assert.False(t, ok)
	})
}

func TestStatisticsAndUnresolved(t *testing.T) {
	t.Run("statistics count subroutines, instructions and unresolved exits by reason", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, map[uint32][]byte{
			0x8000: {0x68}, // PLA, nothing pushed: StackManipulation
			0x8001: {0x60}, // RTS
		})
		a.Run()

		stats := a.Statistics()
		assert.Equal(t, 1, stats.Subroutines)
		assert.Equal(t, 1, stats.UnresolvedCount)
		assert.Equal(t, 1, stats.UnknownByReason[state.StackManipulation])

		unresolved := a.UnresolvedSubroutines()
		assert.Equal(t, []uint32{0x8000}, unresolved)
	})
}

func TestLabelsAndComments(t *testing.T) {
	t.Run("a custom label takes precedence over the generated one", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, map[uint32][]byte{
			0x8000: {0x4C, 0x03, 0x80}, // JMP $8003
			0x8003: {0x60},             // RTS
		})
		a.Run()

		label, ok := a.Label(0x8003, 0)
		assert.True(t, ok)
		assert.Equal(t, "loc_008003", label)

		a.RenameLabel("done", 0x8003, 0)
		label, ok = a.Label(0x8003, 0)
		assert.True(t, ok)
		assert.Equal(t, "done", label)
	})

	t.Run("an unscoped comment is visible under any subroutine context", func(t *testing.T) {
		a := newAnalysisAt(t, 0x8000, map[uint32][]byte{
			0x8000: {0x60},
		})
		a.SetComment(0x8000, 0, "entry point")

		text, ok := a.Comment(0x8000, 0x9999)
		assert.True(t, ok)
		assert.Equal(t, "entry point", text)
	})
}
