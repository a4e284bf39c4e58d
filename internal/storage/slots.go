// Package storage persists the ledger as a single JSON document in a named
// text slot, the way the browser app kept it in local storage.
package storage

import (
	"context"
	"sync"
)

// Slots is a minimal named text store. Put replaces the whole value
// atomically from the caller's point of view.
type Slots interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	Put(ctx context.Context, name, value string) error
}

// MemorySlots keeps slots in process memory.
type MemorySlots struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string]string)}
}

func (m *MemorySlots) Get(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[name]
	return v, ok, nil
}

func (m *MemorySlots) Put(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[name] = value
	return nil
}
