package cart

import (
	"errors"
	"time"
)

const Collection = "carts"

type Status string

const (
	StatusOpen       Status = "open"
	StatusCheckedOut Status = "checked_out"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartClosed       = errors.New("cart is closed")
	ErrCartUpdateFailed = errors.New("cart update failed")
)

type Item struct {
	MenuItemID string `json:"menu_item_id" bson:"menu_item_id"`
	Quantity   int    `json:"quantity" bson:"quantity"`
	Note       string `json:"note,omitempty" bson:"note,omitempty"`
}

// RawItem is a line item as clients send it, before Normalize.
type RawItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Quantity   float64 `json:"quantity"`
	Note       string  `json:"note,omitempty"`
}

type Cart struct {
	ID        string    `json:"id" bson:"_id"`
	TenantID  string    `json:"tenant_id" bson:"tenant_id"`
	DeviceID  string    `json:"device_id,omitempty" bson:"device_id,omitempty"`
	SessionID string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Status    Status    `json:"status" bson:"status"`
	PromoCode *string   `json:"promo_code" bson:"promo_code"`
	Items     []Item    `json:"items" bson:"items"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (c *Cart) IsOpen() bool {
	return c.Status == StatusOpen
}

func (c *Cart) Promo() string {
	if c.PromoCode == nil {
		return ""
	}
	return *c.PromoCode
}

// Identifiers are the owners a cart can be found by. At least one is set on
// every stored cart.
type Identifiers struct {
	DeviceID  string `json:"device_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

func (i Identifiers) Empty() bool {
	return i.DeviceID == "" && i.SessionID == "" && i.UserID == ""
}
