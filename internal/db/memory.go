package db

import (
	"context"
	"sync"
)

// MemoryStore is an in-process core.KVStore used by tests and dry runs
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// Fail, when set, is returned by every operation
	Fail error
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements core.KVStore
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.Fail != nil {
		return nil, false, m.Fail
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set implements core.KVStore
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// Delete implements core.KVStore
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
