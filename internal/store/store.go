// Package store provides a generic address-keyed collection with optional
// per-bank grouping, used by Analysis to hold its derived subroutines.
package store

import "sort"

// Manager provides generic tracking of items keyed by a 24-bit SNES address.
// T is the type of item being managed (e.g. *subroutine.Subroutine).
type Manager[T any] struct {
	banks map[uint8]*Bank[T]

	items map[uint32]T
}

// Bank represents one SNES ROM bank (the top byte of the address) worth of
// items.
type Bank[T any] struct {
	items map[uint32]T
}

// Get returns the item at the given address in this bank.
func (b *Bank[T]) Get(address uint32) (T, bool) {
	item, ok := b.items[address]
	return item, ok
}

// Set sets the item at the given address in this bank.
func (b *Bank[T]) Set(address uint32, item T) {
	b.items[address] = item
}

// Len returns the number of items tracked in this bank.
func (b *Bank[T]) Len() int {
	return len(b.items)
}

// New creates a new address-keyed manager.
func New[T any]() *Manager[T] {
	return &Manager[T]{
		banks: make(map[uint8]*Bank[T]),
		items: make(map[uint32]T),
	}
}

// Get returns the item at the given address.
func (m *Manager[T]) Get(address uint32) (T, bool) {
	item, ok := m.items[address]
	return item, ok
}

// Set sets the item at the given address, and mirrors it into the bank
// that owns address's top byte.
func (m *Manager[T]) Set(address uint32, item T) {
	m.items[address] = item

	bankNum := uint8(address >> 16)
	bank, ok := m.banks[bankNum]
	if !ok {
		bank = &Bank[T]{items: make(map[uint32]T)}
		m.banks[bankNum] = bank
	}
	bank.Set(address, item)
}

// Has returns whether an item exists at the given address.
func (m *Manager[T]) Has(address uint32) bool {
	_, ok := m.items[address]
	return ok
}

// Delete removes the item at the given address, from both the flat index
// and its owning bank.
func (m *Manager[T]) Delete(address uint32) {
	delete(m.items, address)
	if bank, ok := m.banks[uint8(address>>16)]; ok {
		delete(bank.items, address)
	}
}

// Items returns the internal items map for iteration.
// For getting/setting individual items, use Get/Set methods.
func (m *Manager[T]) Items() map[uint32]T {
	return m.items
}

// Len returns the number of items in the manager.
func (m *Manager[T]) Len() int {
	return len(m.items)
}

// SortedByAddress returns all items sorted by the given address key.
func (m *Manager[T]) SortedByAddress(keyFunc func(T) uint32) []T {
	items := make([]T, 0, m.Len())
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return keyFunc(items[i]) < keyFunc(items[j])
	})
	return items
}

// Banks returns the set of bank numbers that currently own at least one item.
func (m *Manager[T]) Banks() []uint8 {
	banks := make([]uint8, 0, len(m.banks))
	for num := range m.banks {
		banks = append(banks, num)
	}
	sort.Slice(banks, func(i, j int) bool { return banks[i] < banks[j] })
	return banks
}

// Bank returns the bank with the given number, or nil if it owns no items.
func (m *Manager[T]) Bank(num uint8) *Bank[T] {
	return m.banks[num]
}

// Clear removes every item, keeping the manager usable.
func (m *Manager[T]) Clear() {
	m.items = make(map[uint32]T)
	m.banks = make(map[uint8]*Bank[T])
}
