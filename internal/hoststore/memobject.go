package hoststore

import (
	"context"
	"sync"
)

// MemObject is an in-memory ObjectStore with insertion-ordered key
// enumeration. Overwriting an existing url keeps its original position.
type MemObject struct {
	mu    sync.RWMutex
	items map[string]Record
	order []string
}

// NewMemObject creates an empty in-memory object store.
func NewMemObject() *MemObject {
	return &MemObject{
		items: make(map[string]Record),
	}
}

// Put stores rec under url, overwriting any prior record.
func (m *MemObject) Put(ctx context.Context, url string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[url]; !ok {
		m.order = append(m.order, url)
	}
	m.items[url] = rec.Clone()
	return nil
}

// Match returns the record stored under url.
func (m *MemObject) Match(ctx context.Context, url string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.items[url]
	if !ok {
		return Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// Delete removes the record under url.
func (m *MemObject) Delete(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[url]; !ok {
		return false, nil
	}

	delete(m.items, url)
	for i, u := range m.order {
		if u == url {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Keys lists stored urls in insertion order.
func (m *MemObject) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.order...), nil
}

// Destroy removes every record.
func (m *MemObject) Destroy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]Record)
	m.order = nil
	return nil
}
