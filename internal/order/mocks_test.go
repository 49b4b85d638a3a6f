package order

import (
	"context"

	"github.com/appetiteclub/ordering/internal/cart"
	"github.com/appetiteclub/ordering/internal/kitchen"
)

// MockRepository is a test mock for Repository
type MockRepository struct {
	Inner         Repository
	CreateFunc    func(ctx context.Context, tenantID string, o *Order) error
	SetStatusFunc func(ctx context.Context, tenantID, id, status string) error
}

func (m *MockRepository) Create(ctx context.Context, tenantID string, o *Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tenantID, o)
	}
	return m.Inner.Create(ctx, tenantID, o)
}

func (m *MockRepository) Get(ctx context.Context, tenantID, id string) (*Order, error) {
	return m.Inner.Get(ctx, tenantID, id)
}

func (m *MockRepository) SetStatus(ctx context.Context, tenantID, id, status string) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, tenantID, id, status)
	}
	return m.Inner.SetStatus(ctx, tenantID, id, status)
}

func (m *MockRepository) Active(ctx context.Context, tenantID string) ([]Order, error) {
	return m.Inner.Active(ctx, tenantID)
}

// MockCarts is a test mock for Carts
type MockCarts struct {
	Inner        Carts
	CheckOutFunc func(ctx context.Context, tenantID, cartID string) error
}

func (m *MockCarts) GetActiveCart(ctx context.Context, tenantID, cartID string) (*cart.Cart, error) {
	return m.Inner.GetActiveCart(ctx, tenantID, cartID)
}

func (m *MockCarts) SetPromoCode(ctx context.Context, tenantID, cartID string, code *string) error {
	return m.Inner.SetPromoCode(ctx, tenantID, cartID, code)
}

func (m *MockCarts) CheckOut(ctx context.Context, tenantID, cartID string) error {
	if m.CheckOutFunc != nil {
		return m.CheckOutFunc(ctx, tenantID, cartID)
	}
	return m.Inner.CheckOut(ctx, tenantID, cartID)
}

// MockTickets is a test mock for Tickets
type MockTickets struct {
	Inner       Tickets
	EnqueueFunc func(ctx context.Context, tenantID string, req kitchen.EnqueueRequest) (*kitchen.Ticket, error)
}

func (m *MockTickets) Enqueue(ctx context.Context, tenantID string, req kitchen.EnqueueRequest) (*kitchen.Ticket, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, tenantID, req)
	}
	return m.Inner.Enqueue(ctx, tenantID, req)
}

func (m *MockTickets) ForOrder(ctx context.Context, tenantID, orderID string) (*kitchen.Ticket, error) {
	return m.Inner.ForOrder(ctx, tenantID, orderID)
}
