package catalog

import (
	"context"
	"sync"
)

// MockLookup is a test mock for Lookup
type MockLookup struct {
	mu        sync.Mutex
	items     map[string]MenuItem
	calls     [][]string
	ItemsFunc func(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error)
}

func NewMockLookup(items ...MenuItem) *MockLookup {
	m := &MockLookup{items: make(map[string]MenuItem)}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *MockLookup) Items(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), ids...))
	m.mu.Unlock()

	if m.ItemsFunc != nil {
		return m.ItemsFunc(ctx, tenantID, ids)
	}
	out := make(map[string]MenuItem)
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (m *MockLookup) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
