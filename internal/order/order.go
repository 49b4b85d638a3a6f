// Package order turns an open cart into an immutable order and hands it to
// the kitchen.
package order

import (
	"errors"
	"time"

	"github.com/appetiteclub/ordering/internal/cart"
	"github.com/appetiteclub/ordering/internal/promo"
)

const Collection = "orders"

var (
	ErrOrderSubmissionFailed = errors.New("order submission failed")
	ErrOrderNotFound         = errors.New("order not found")
)

type Customer struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

func (c *Customer) Empty() bool {
	return c == nil || (c.Name == "" && c.Phone == "" && c.Email == "")
}

// Item is the priced line as it stood at submission.
type Item struct {
	MenuItemID string  `bson:"menu_item_id" json:"menu_item_id"`
	Name       string  `bson:"name,omitempty" json:"name,omitempty"`
	Quantity   int     `bson:"quantity" json:"quantity"`
	UnitPrice  float64 `bson:"unit_price" json:"unit_price"`
	LineTotal  float64 `bson:"line_total" json:"line_total"`
	Note       string  `bson:"note,omitempty" json:"note,omitempty"`
}

// Order is immutable once written except for Status.
type Order struct {
	ID          string         `bson:"_id" json:"id"`
	TenantID    string         `bson:"tenant_id" json:"tenant_id"`
	CartID      string         `bson:"cart_id" json:"cart_id"`
	Status      string         `bson:"status" json:"status"`
	Subtotal    float64        `bson:"subtotal" json:"subtotal"`
	DeliveryFee float64        `bson:"delivery_fee" json:"delivery_fee"`
	Discount    float64        `bson:"discount" json:"discount"`
	Total       float64        `bson:"total" json:"total"`
	Currency    string         `bson:"currency" json:"currency"`
	PromoCode   *string        `bson:"promo_code" json:"promo_code"`
	Promotion   *promo.Applied `bson:"promotion,omitempty" json:"promotion,omitempty"`
	Items       []Item         `bson:"items" json:"items"`
	Customer    *Customer      `bson:"customer,omitempty" json:"customer,omitempty"`
	Notes       string         `bson:"notes,omitempty" json:"notes,omitempty"`
	SubmittedAt time.Time      `bson:"submitted_at" json:"submitted_at"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updated_at"`
}

// SubmitRequest carries the checkout form. A nil PromoCode keeps the cart's
// code; an empty one clears it.
type SubmitRequest struct {
	CartID    string    `json:"cart_id"`
	PromoCode *string   `json:"promo_code"`
	Notes     string    `json:"notes"`
	Customer  *Customer `json:"customer"`
}

// Receipt is what the submitter gets back. TicketID is empty when the
// kitchen could not be reached.
type Receipt struct {
	Order    *Order      `json:"order"`
	Items    []cart.Line `json:"items"`
	TicketID string      `json:"ticket_id,omitempty"`
}

func snapshotItems(lines []cart.Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		it := Item{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			LineTotal:  l.LineTotal,
			Note:       l.Note,
		}
		if l.MenuItem != nil {
			it.Name = l.MenuItem.Name
			if l.MenuItem.Available {
				it.UnitPrice = l.MenuItem.Price
			}
		}
		items = append(items, it)
	}
	return items
}
