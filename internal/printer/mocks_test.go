package printer

import (
	"context"
	"sync"

	"github.com/appetiteclub/ordering/internal/kitchen"
)

// MockPrinter is a test mock for Printer
type MockPrinter struct {
	mu        sync.Mutex
	printed   []string
	PrintFunc func(ctx context.Context, device kitchen.Device, ticket kitchen.Ticket) error
}

func (m *MockPrinter) Print(ctx context.Context, device kitchen.Device, ticket kitchen.Ticket) error {
	m.mu.Lock()
	m.printed = append(m.printed, device.ID+":"+ticket.ID)
	m.mu.Unlock()
	if m.PrintFunc != nil {
		return m.PrintFunc(ctx, device, ticket)
	}
	return nil
}

func (m *MockPrinter) Printed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.printed...)
}
