package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/retro65816/disasm/internal/analysis"
	"github.com/retro65816/disasm/internal/rom"
)

func translateLoROMAddr(addr uint32) uint32 {
	return ((addr & 0x7F0000) >> 1) | (addr & 0x7FFF)
}

func buildAnalysis(t *testing.T, pc uint16, code map[uint32][]byte) *analysis.Analysis {
	t.Helper()
	data := make([]byte, 0x10000)
	copy(data[0x7FC0:], "TEST")
	data[0x7FFC], data[0x7FFD] = byte(pc), byte(pc>>8)
	data[0x7FEA], data[0x7FEB] = byte(pc), byte(pc>>8)
	for addr, bytes := range code {
		copy(data[translateLoROMAddr(addr):], bytes)
	}
	r, err := rom.New(data)
	assert.NoError(t, err)
	return analysis.New(r, log.NewTestLogger(t))
}

func TestCallGraphTree(t *testing.T) {
	t.Run("a caller and its callee each appear once", func(t *testing.T) {
		a := buildAnalysis(t, 0x8000, map[uint32][]byte{
			0x8000: {0x20, 0x05, 0x80}, // JSR $8005
			0x8003: {0x4C, 0x03, 0x80}, // JMP $8003
			0x8005: {0x60},             // RTS
		})
		a.Run()

		out := CallGraphTree(a, 0x8000)
		assert.True(t, strings.Contains(out, "8000"))
		assert.True(t, strings.Contains(out, "8005"))
	})

	t.Run("a subroutine calling itself renders as recursion, not an infinite tree", func(t *testing.T) {
		a := buildAnalysis(t, 0x8000, map[uint32][]byte{
			0x8000: {0x20, 0x00, 0x80}, // JSR $8000
			0x8003: {0x60},             // RTS
		})
		a.Run()

		out := CallGraphTree(a, 0x8000)
		assert.True(t, strings.Contains(out, "recursion"))
	})
}

func TestCalleesOf(t *testing.T) {
	t.Run("callees are collected from anywhere in the subroutine body", func(t *testing.T) {
		a := buildAnalysis(t, 0x8000, map[uint32][]byte{
			0x8000: {0xEA},             // NOP
			0x8001: {0x20, 0x06, 0x80}, // JSR $8006, not at the entry PC
			0x8004: {0x4C, 0x04, 0x80}, // JMP $8004
			0x8006: {0x60},             // RTS
		})
		a.Run()

		callees := a.CalleesOf(0x8000)
		assert.Equal(t, []uint32{0x8006}, callees)
	})
}
