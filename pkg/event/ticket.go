package event

import (
	"encoding/json"
	"time"
)

const (
	KitchenTicketsTopic = "kitchen.tickets"

	EventTicketCreated      = "ticket.created"
	EventTicketAcknowledged = "ticket.acknowledged"
)

// TicketEvent is the lifecycle notification carried by the in-process hub and
// relayed to the message broker. Ticket holds the full ticket document as
// JSON so consumers can render it without a store round trip.
type TicketEvent struct {
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	TenantID    string          `json:"tenant_id"`
	TicketID    string          `json:"ticket_id"`
	OrderID     string          `json:"order_id,omitempty"`
	Status      string          `json:"status"`
	PrintStatus string          `json:"print_status"`
	DeviceID    string          `json:"device_id,omitempty"`
	AckStatus   string          `json:"ack_status,omitempty"`
	Origin      string          `json:"origin,omitempty"`
	Ticket      json.RawMessage `json:"ticket,omitempty"`
}

// IsPendingPrint reports whether the event announces a ticket waiting for a
// printer.
func (e TicketEvent) IsPendingPrint() bool {
	return e.EventType == EventTicketCreated && e.PrintStatus == "pending"
}
