package order

import (
	"context"
	"fmt"

	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/pkg/enums/orderstatus"
	"go.mongodb.org/mongo-driver/bson"
)

type Repository interface {
	Create(ctx context.Context, tenantID string, o *Order) error
	// Get returns nil when the order does not exist.
	Get(ctx context.Context, tenantID, id string) (*Order, error)
	SetStatus(ctx context.Context, tenantID, id, status string) error
	// Active lists orders that were not cancelled, oldest first.
	Active(ctx context.Context, tenantID string) ([]Order, error)
}

type StoreRepository struct {
	backend tenant.Backend
}

func NewStoreRepository(backend tenant.Backend) *StoreRepository {
	return &StoreRepository{backend: backend}
}

func (r *StoreRepository) coll(tenantID string) tenant.Collection {
	return tenant.Scope(r.backend, tenantID).Collection(Collection)
}

func (r *StoreRepository) Create(ctx context.Context, tenantID string, o *Order) error {
	doc, err := tenant.Encode(o)
	if err != nil {
		return err
	}
	if err := r.coll(tenantID).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot insert order: %w", err)
	}
	return nil
}

func (r *StoreRepository) Get(ctx context.Context, tenantID, id string) (*Order, error) {
	o, err := tenant.FindOne[Order](ctx, r.coll(tenantID), bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("cannot find order: %w", err)
	}
	return o, nil
}

func (r *StoreRepository) SetStatus(ctx context.Context, tenantID, id, status string) error {
	_, err := r.coll(tenantID).UpdateOne(ctx, bson.M{"_id": id}, tenant.Set{Fields: bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("cannot update order status: %w", err)
	}
	return nil
}

func (r *StoreRepository) Active(ctx context.Context, tenantID string) ([]Order, error) {
	orders, err := tenant.FindAll[Order](ctx, r.coll(tenantID),
		bson.M{"status": bson.M{"$ne": orderstatus.Statuses.Cancelled.Code()}},
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "submitted_at"}}})
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}
	return orders, nil
}
