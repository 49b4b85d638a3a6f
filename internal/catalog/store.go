package catalog

import (
	"context"
	"fmt"

	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
)

// StoreLookup reads menu items replicated into the local document store.
type StoreLookup struct {
	backend tenant.Backend
}

func NewStoreLookup(backend tenant.Backend) *StoreLookup {
	return &StoreLookup{backend: backend}
}

func (s *StoreLookup) Items(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	coll := tenant.Scope(s.backend, tenantID).Collection(Collection)
	items, err := tenant.FindAll[MenuItem](ctx, coll, bson.M{"_id": bson.M{"$in": ids}}, tenant.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("cannot find menu items: %w", err)
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

// Put inserts or replaces a menu item.
func (s *StoreLookup) Put(ctx context.Context, tenantID string, item MenuItem) error {
	coll := tenant.Scope(s.backend, tenantID).Collection(Collection)

	doc, err := tenant.Encode(item)
	if err != nil {
		return err
	}

	res, err := coll.UpdateOne(ctx, bson.M{"_id": item.ID}, tenant.Replace{Doc: doc})
	if err != nil {
		return fmt.Errorf("cannot replace menu item: %w", err)
	}
	if res.Matched > 0 {
		return nil
	}
	if err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot insert menu item: %w", err)
	}
	return nil
}
