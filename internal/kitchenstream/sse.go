// Package kitchenstream pushes ticket events to displays over SSE and relays
// them between service instances.
package kitchenstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/internal/ticketstream"
	"github.com/appetiteclub/ordering/pkg/event"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	EventConnected = "connected"
	EventSnapshot  = "tickets.snapshot"

	DefaultKeepAlive = 30 * time.Second
	bufferSize       = 100
)

type Snapshotter interface {
	Outstanding(ctx context.Context, tenantID string) ([]kitchen.Ticket, error)
}

type Subscriber interface {
	SubscribeTenant(tenantID string, l ticketstream.Listener) func()
}

// SSEHandler streams a tenant's ticket events: a connected frame, a snapshot
// of outstanding tickets, then live events until the client goes away.
type SSEHandler struct {
	hub       Subscriber
	tickets   Snapshotter
	logger    apt.Logger
	KeepAlive time.Duration
}

func NewSSEHandler(hub Subscriber, tickets Snapshotter, logger apt.Logger) *SSEHandler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &SSEHandler{
		hub:       hub,
		tickets:   tickets,
		logger:    logger,
		KeepAlive: DefaultKeepAlive,
	}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets/stream", h.ServeHTTP)
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	log := h.logger.With("subscriber_id", subscriberID, "tenant_id", tenantID)
	log.Info("new SSE connection")

	// Subscribe before the snapshot so nothing published in between is lost.
	events := make(chan event.TicketEvent, bufferSize)
	unsubscribe := h.hub.SubscribeTenant(tenantID, func(evt event.TicketEvent) {
		select {
		case events <- evt:
		default:
			log.Info("subscriber channel full, dropping event", "ticket_id", evt.TicketID)
		}
	})
	defer unsubscribe()

	sendSSEEvent(w, EventConnected, map[string]string{
		"subscriber_id": subscriberID,
		"tenant_id":     tenantID,
	})

	snapshot, err := h.tickets.Outstanding(ctx, tenantID)
	if err != nil {
		log.Error("cannot load ticket snapshot", "error", err)
		snapshot = []kitchen.Ticket{}
	}
	sendSSEEvent(w, EventSnapshot, snapshot)

	ticker := time.NewTicker(h.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected")
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flush(w)

		case evt := <-events:
			sendSSEEvent(w, evt.EventType, evt)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
