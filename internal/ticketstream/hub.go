// Package ticketstream fans ticket events out to in-process listeners.
// Delivery is synchronous, best effort and at most once.
package ticketstream

import (
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/pkg/event"
)

type Listener func(evt event.TicketEvent)

type subscription struct {
	id       uint64
	listener Listener
}

type Hub struct {
	mu      sync.RWMutex
	nextID  uint64
	tenants map[string]map[uint64]Listener
	global  map[uint64]Listener
	logger  apt.Logger
}

func NewHub(logger apt.Logger) *Hub {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Hub{
		tenants: make(map[string]map[uint64]Listener),
		global:  make(map[uint64]Listener),
		logger:  logger,
	}
}

// SubscribeTenant registers a listener for one tenant's events. The returned
// func unsubscribes and is safe to call more than once.
func (h *Hub) SubscribeTenant(tenantID string, l Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	bucket, ok := h.tenants[tenantID]
	if !ok {
		bucket = make(map[uint64]Listener)
		h.tenants[tenantID] = bucket
	}
	bucket[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if b, ok := h.tenants[tenantID]; ok {
				delete(b, id)
				if len(b) == 0 {
					delete(h.tenants, tenantID)
				}
			}
		})
	}
}

// SubscribeAll registers a listener for every tenant's events.
func (h *Hub) SubscribeAll(l Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.global[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.global, id)
		})
	}
}

// Publish delivers evt to the tenant's listeners and then to global ones.
// Listeners run on the caller's goroutine.
func (h *Hub) Publish(tenantID string, evt event.TicketEvent) {
	if evt.TenantID == "" {
		evt.TenantID = tenantID
	}

	h.mu.RLock()
	targets := make([]subscription, 0, len(h.tenants[tenantID])+len(h.global))
	for id, l := range h.tenants[tenantID] {
		targets = append(targets, subscription{id: id, listener: l})
	}
	for id, l := range h.global {
		targets = append(targets, subscription{id: id, listener: l})
	}
	h.mu.RUnlock()

	for _, s := range targets {
		h.deliver(s, evt)
	}
}

func (h *Hub) deliver(s subscription, evt event.TicketEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("ticket listener panicked", "listener", s.id, "event_type", evt.EventType, "ticket_id", evt.TicketID, "panic", r)
		}
	}()
	s.listener(evt)
}

// Counts reports listener totals, mostly for health output and tests.
func (h *Hub) Counts() (tenants int, listeners int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, b := range h.tenants {
		listeners += len(b)
	}
	return len(h.tenants), listeners + len(h.global)
}
