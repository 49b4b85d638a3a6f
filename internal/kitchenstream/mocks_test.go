package kitchenstream

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/ordering/internal/kitchen"
)

// MockBus is an in-memory broker shared by relays under test. Delivery is
// synchronous to every handler subscribed to the topic.
type MockBus struct {
	mu        sync.Mutex
	handlers  map[string][]events.HandlerFunc
	published [][]byte
}

func NewMockBus() *MockBus {
	return &MockBus{handlers: make(map[string][]events.HandlerFunc)}
}

func (b *MockBus) Publish(ctx context.Context, topic string, msg []byte) error {
	b.mu.Lock()
	b.published = append(b.published, msg)
	handlers := append([]events.HandlerFunc(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		_ = h(ctx, msg)
	}
	return nil
}

func (b *MockBus) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *MockBus) Published() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

// MockSnapshotter is a test mock for Snapshotter
type MockSnapshotter struct {
	OutstandingFunc func(ctx context.Context, tenantID string) ([]kitchen.Ticket, error)
}

func (m *MockSnapshotter) Outstanding(ctx context.Context, tenantID string) ([]kitchen.Ticket, error) {
	if m.OutstandingFunc != nil {
		return m.OutstandingFunc(ctx, tenantID)
	}
	return []kitchen.Ticket{}, nil
}
