package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It backs tests and ephemeral runs where
// persistence across restarts does not matter.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNoDocument
	}

	out := make([]byte, len(doc))
	copy(out, doc)

	return out, nil
}

func (m *Memory) Save(_ context.Context, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(doc))
	copy(cp, doc)
	m.docs[key] = cp

	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, key)

	return nil
}
