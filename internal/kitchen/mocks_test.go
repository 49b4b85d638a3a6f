package kitchen

import (
	"sync"

	"github.com/appetiteclub/ordering/pkg/event"
)

// MockPublisher is a test mock for Publisher
type MockPublisher struct {
	mu          sync.Mutex
	events      []event.TicketEvent
	PublishFunc func(tenantID string, evt event.TicketEvent)
}

func (m *MockPublisher) Publish(tenantID string, evt event.TicketEvent) {
	if m.PublishFunc != nil {
		m.PublishFunc(tenantID, evt)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *MockPublisher) Events(eventType string) []event.TicketEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.TicketEvent
	for _, e := range m.events {
		if eventType == "" || e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
