package keyValStore

import (
	"errors"
	"sync"
)

var ErrStoreClosed = errors.New("keyValStore: store closed")

// MemStore keeps blobs in memory, keyed by the same encoding KeyValStore
// uses. Values are copied on the way in and out.
type MemStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	closed   bool
	counters counters
}

func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string][]byte)}
}

func (m *MemStore) Get(node uint64) ([]byte, error) {
	m.counters.reads.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	v, ok := m.values[string(EncodeKey(node))]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemStore) Put(node uint64, data []byte) error {
	m.counters.writes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.values[string(EncodeKey(node))] = append([]byte(nil), data...)
	return nil
}

func (m *MemStore) Delete(node uint64) error {
	m.counters.deletes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.values, string(EncodeKey(node)))
	return nil
}

func (m *MemStore) Counters() Counters {
	return m.counters.snapshot()
}

func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MemStore)(nil)
