package cart

import (
	"context"

	"github.com/appetiteclub/ordering/internal/catalog"
	"go.mongodb.org/mongo-driver/bson"
)

// MockLookup is a test mock for catalog.Lookup
type MockLookup struct {
	Catalog   map[string]catalog.MenuItem
	ItemsFunc func(ctx context.Context, tenantID string, ids []string) (map[string]catalog.MenuItem, error)
}

func (m *MockLookup) Items(ctx context.Context, tenantID string, ids []string) (map[string]catalog.MenuItem, error) {
	if m.ItemsFunc != nil {
		return m.ItemsFunc(ctx, tenantID, ids)
	}
	out := make(map[string]catalog.MenuItem)
	for _, id := range ids {
		if it, ok := m.Catalog[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

// MockRepository delegates to Inner unless a *Func override is set.
type MockRepository struct {
	Inner              Repository
	CreateFunc         func(ctx context.Context, tenantID string, c *Cart) error
	GetFunc            func(ctx context.Context, tenantID, id string) (*Cart, error)
	UpdateOpenFunc     func(ctx context.Context, tenantID, id string, fields bson.M) (bool, error)
	MarkCheckedOutFunc func(ctx context.Context, tenantID, id string) (bool, error)
}

func (m *MockRepository) Create(ctx context.Context, tenantID string, c *Cart) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tenantID, c)
	}
	return m.Inner.Create(ctx, tenantID, c)
}

func (m *MockRepository) Get(ctx context.Context, tenantID, id string) (*Cart, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, tenantID, id)
	}
	return m.Inner.Get(ctx, tenantID, id)
}

func (m *MockRepository) FindOpen(ctx context.Context, tenantID string, ids Identifiers) (*Cart, error) {
	return m.Inner.FindOpen(ctx, tenantID, ids)
}

func (m *MockRepository) UpdateOpen(ctx context.Context, tenantID, id string, fields bson.M) (bool, error) {
	if m.UpdateOpenFunc != nil {
		return m.UpdateOpenFunc(ctx, tenantID, id, fields)
	}
	return m.Inner.UpdateOpen(ctx, tenantID, id, fields)
}

func (m *MockRepository) MarkCheckedOut(ctx context.Context, tenantID, id string) (bool, error) {
	if m.MarkCheckedOutFunc != nil {
		return m.MarkCheckedOutFunc(ctx, tenantID, id)
	}
	return m.Inner.MarkCheckedOut(ctx, tenantID, id)
}
