package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retro65816/disasm/internal/state"
)

func TestPushPop(t *testing.T) {
	t.Run("pop returns pushes in LIFO order tagged by producer", func(t *testing.T) {
		s := New()
		s.Push(0x8000, 2)
		entries := s.Pop(2)
		assert.Len(t, entries, 2)
		assert.Equal(t, uint32(0x8000), entries[0].Producer)
		assert.Equal(t, uint32(0x8000), entries[1].Producer)
		assert.False(t, entries[0].Unknown)
	})

	t.Run("popping past what was tracked yields unknown entries", func(t *testing.T) {
		s := New()
		entry := s.PopOne()
		assert.True(t, entry.Unknown)
	})

	t.Run("pointer decrements on push and increments on pop", func(t *testing.T) {
		s := New()
		start := s.Pointer()
		s.Push(0x8000, 3)
		assert.Equal(t, start-3, s.Pointer())
		s.Pop(3)
		assert.Equal(t, start, s.Pointer())
	})
}

func TestPushState(t *testing.T) {
	t.Run("PHP snapshot is restored by a matching pop", func(t *testing.T) {
		s := New()
		st := state.New(false, true)
		ch := state.Empty().Set(state.MFlag)
		s.PushState(0x8042, st, ch)

		entry := s.PopOne()
		assert.True(t, entry.IsStateSnapshot)
		assert.Equal(t, uint32(0x8042), entry.Producer)
		assert.Equal(t, st, entry.SnapshotState)
		assert.True(t, entry.SnapshotChange.Equal(ch))
	})
}

func TestClone(t *testing.T) {
	t.Run("clone is independent of the original", func(t *testing.T) {
		s := New()
		s.Push(0x8000, 1)
		clone := s.Clone()
		clone.Push(0x9000, 1)

		assert.Equal(t, s.Pointer()-1, clone.Pointer())

		original := s.PopOne()
		assert.Equal(t, uint32(0x8000), original.Producer)
	})
}

func TestPushUnknown(t *testing.T) {
	t.Run("unknown push pops as unknown", func(t *testing.T) {
		s := New()
		s.PushUnknown(1)
		entry := s.PopOne()
		assert.True(t, entry.Unknown)
	})
}

func TestSetPointer(t *testing.T) {
	t.Run("set pointer overrides stack position directly", func(t *testing.T) {
		s := New()
		s.SetPointer(0x0180)
		assert.Equal(t, uint16(0x0180), s.Pointer())
	})
}
