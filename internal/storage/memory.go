package storage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns a process-local Store.  It is the fallback when Redis
// is unreachable and the backend used by tests.
func NewMemory() Store {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrMissing
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
