package hoststore

import "sync"

// MemKV is an in-memory KV. It lives for the duration of the process,
// which makes it the natural backing for session-scoped entries.
type MemKV struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemKV creates an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{
		items: make(map[string]string),
	}
}

// Get returns the value stored under key.
func (m *MemKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	return v, ok
}

// Set stores value under key, overwriting any prior value.
func (m *MemKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}

// Remove deletes key from the store.
func (m *MemKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Clear removes all entries.
func (m *MemKV) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]string)
	return nil
}

// Len returns the number of stored entries.
func (m *MemKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}
