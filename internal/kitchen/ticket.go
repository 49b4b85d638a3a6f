package kitchen

import (
	"errors"
	"time"
)

const (
	TicketsCollection         = "kitchen_tickets"
	AcknowledgementCollection = "ticket_acknowledgements"
	DevicesCollection         = "devices"
)

var (
	ErrInvalidAckStatus = errors.New("invalid acknowledgement status")
	ErrAckConflict      = errors.New("ticket changed concurrently")
)

type TicketItem struct {
	MenuItemID string  `bson:"menu_item_id" json:"menu_item_id"`
	Name       string  `bson:"name,omitempty" json:"name,omitempty"`
	Quantity   int     `bson:"quantity" json:"quantity"`
	UnitPrice  float64 `bson:"unit_price" json:"unit_price"`
	Note       string  `bson:"note,omitempty" json:"note,omitempty"`
}

type Totals struct {
	Subtotal    float64 `bson:"subtotal" json:"subtotal"`
	DeliveryFee float64 `bson:"delivery_fee" json:"delivery_fee"`
	Discount    float64 `bson:"discount" json:"discount"`
	Total       float64 `bson:"total" json:"total"`
	Currency    string  `bson:"currency" json:"currency"`
}

type Customer struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

// Ticket is the kitchen's copy of an order. Items are a snapshot taken at
// enqueue time.
type Ticket struct {
	ID             string       `bson:"_id" json:"id"`
	TenantID       string       `bson:"tenant_id" json:"tenant_id"`
	OrderID        string       `bson:"order_id" json:"order_id"`
	CartID         string       `bson:"cart_id,omitempty" json:"cart_id,omitempty"`
	Status         string       `bson:"status" json:"status"`
	PrintStatus    string       `bson:"print_status" json:"print_status"`
	Channels       []string     `bson:"channels" json:"channels"`
	Items          []TicketItem `bson:"items" json:"items"`
	Totals         Totals       `bson:"totals" json:"totals"`
	Customer       *Customer    `bson:"customer,omitempty" json:"customer,omitempty"`
	Notes          string       `bson:"notes,omitempty" json:"notes,omitempty"`
	EnqueuedAt     time.Time    `bson:"enqueued_at" json:"enqueued_at"`
	AcknowledgedAt *time.Time   `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	AcknowledgedBy string       `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	RetryCount     int          `bson:"retry_count" json:"retry_count"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updated_at"`
}

func (t *Ticket) HasChannel(name string) bool {
	for _, c := range t.Channels {
		if c == name {
			return true
		}
	}
	return false
}

// Acknowledgement is one device report against a ticket. Rows are only ever
// appended.
type Acknowledgement struct {
	ID             string    `bson:"_id" json:"id"`
	TenantID       string    `bson:"tenant_id" json:"tenant_id"`
	TicketID       string    `bson:"ticket_id" json:"ticket_id"`
	DeviceID       string    `bson:"device_id" json:"device_id"`
	Status         string    `bson:"status" json:"status"`
	Notes          string    `bson:"notes,omitempty" json:"notes,omitempty"`
	AcknowledgedAt time.Time `bson:"acknowledged_at" json:"acknowledged_at"`
}

type EnqueueRequest struct {
	OrderID  string
	CartID   string
	Items    []TicketItem
	Totals   Totals
	Customer *Customer
	Notes    string
	// Channels overrides channel selection when not empty.
	Channels []string
}

type AckInput struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

type AckResult struct {
	Ticket          *Ticket          `json:"ticket"`
	Acknowledgement *Acknowledgement `json:"acknowledgement"`
}
