package cart

import (
	"context"
	"fmt"

	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
)

type Repository interface {
	Create(ctx context.Context, tenantID string, c *Cart) error
	Get(ctx context.Context, tenantID, id string) (*Cart, error)
	FindOpen(ctx context.Context, tenantID string, ids Identifiers) (*Cart, error)
	// UpdateOpen writes fields only while the cart is still open and reports
	// whether it did.
	UpdateOpen(ctx context.Context, tenantID, id string, fields bson.M) (bool, error)
	// MarkCheckedOut flips open to checked_out. Exactly one caller wins.
	MarkCheckedOut(ctx context.Context, tenantID, id string) (bool, error)
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

func (r *StoreRepository) Create(ctx context.Context, tenantID string, c *Cart) error {
	doc, err := tenant.Encode(c)
	if err != nil {
		return err
	}
	if err := r.coll(tenantID).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot insert cart: %w", err)
	}
	return nil
}

// Get returns nil when the cart does not exist.
func (r *StoreRepository) Get(ctx context.Context, tenantID, id string) (*Cart, error) {
	c, err := tenant.FindOne[Cart](ctx, r.coll(tenantID), bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("cannot find cart: %w", err)
	}
	return c, nil
}

func (r *StoreRepository) FindOpen(ctx context.Context, tenantID string, ids Identifiers) (*Cart, error) {
	var or []bson.M
	if ids.DeviceID != "" {
		or = append(or, bson.M{"device_id": ids.DeviceID})
	}
	if ids.SessionID != "" {
		or = append(or, bson.M{"session_id": ids.SessionID})
	}
	if ids.UserID != "" {
		or = append(or, bson.M{"user_id": ids.UserID})
	}
	if len(or) == 0 {
		return nil, nil
	}

	carts, err := tenant.FindAll[Cart](ctx, r.coll(tenantID),
		bson.M{"status": string(StatusOpen), "$or": or},
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "updated_at", Desc: true}}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("cannot find open cart: %w", err)
	}
	if len(carts) == 0 {
		return nil, nil
	}
	return &carts[0], nil
}

func (r *StoreRepository) UpdateOpen(ctx context.Context, tenantID, id string, fields bson.M) (bool, error) {
	res, err := r.coll(tenantID).UpdateOne(ctx,
		bson.M{"_id": id, "status": string(StatusOpen)},
		tenant.Set{Fields: fields})
	if err != nil {
		return false, fmt.Errorf("cannot update cart: %w", err)
	}
	return res.Matched == 1, nil
}

func (r *StoreRepository) MarkCheckedOut(ctx context.Context, tenantID, id string) (bool, error) {
	return r.UpdateOpen(ctx, tenantID, id, bson.M{"status": string(StatusCheckedOut)})
}
