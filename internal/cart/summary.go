package cart

import (
	"context"
	"fmt"

	"github.com/appetiteclub/ordering/internal/catalog"
	"github.com/appetiteclub/ordering/internal/promo"
)

type Pricing struct {
	DeliveryFee float64
	Currency    string
}

var DefaultPricing = Pricing{DeliveryFee: 2.99, Currency: "USD"}

type Evaluator interface {
	Evaluate(code string, subtotal, deliveryFee float64) promo.Result
}

// Line is a cart item joined with its catalog record. MenuItem is nil when the
// catalog no longer has the item.
type Line struct {
	Item
	MenuItem  *catalog.MenuItem `json:"menu_item,omitempty" bson:"menu_item,omitempty"`
	LineTotal float64           `json:"line_total" bson:"line_total"`
}

func (l Line) Hydrated() bool {
	return l.MenuItem != nil
}

type Summary struct {
	Lines       []Line         `json:"lines"`
	Subtotal    float64        `json:"subtotal"`
	DeliveryFee float64        `json:"delivery_fee"`
	Discount    float64        `json:"discount"`
	Total       float64        `json:"total"`
	Currency    string         `json:"currency"`
	Promotion   *promo.Applied `json:"promotion,omitempty"`
	PromoReason string         `json:"promo_reason,omitempty"`
}

func BuildSummary(c *Cart, items map[string]catalog.MenuItem, evaluator Evaluator, pricing Pricing) Summary {
	s := Summary{
		Lines:    make([]Line, 0, len(c.Items)),
		Currency: pricing.Currency,
	}

	var subtotal float64
	for _, it := range c.Items {
		line := Line{Item: it}
		if mi, ok := items[it.MenuItemID]; ok {
			mi := mi
			line.MenuItem = &mi
			if mi.Available {
				line.LineTotal = promo.Round(mi.Price * float64(it.Quantity))
				subtotal += mi.Price * float64(it.Quantity)
			}
			if mi.Currency != "" {
				s.Currency = mi.Currency
			}
		}
		s.Lines = append(s.Lines, line)
	}

	s.Subtotal = promo.Round(subtotal)
	if len(c.Items) > 0 {
		s.DeliveryFee = pricing.DeliveryFee
	}

	result := evaluator.Evaluate(c.Promo(), s.Subtotal, s.DeliveryFee)
	s.Promotion = result.Applied
	s.PromoReason = result.Reason
	s.Discount = result.Discount()

	total := promo.Round(s.Subtotal + s.DeliveryFee - s.Discount)
	if total < 0 {
		total = 0
	}
	s.Total = total
	return s
}

// SummaryBuilder hydrates a cart from the catalog and prices it.
type SummaryBuilder struct {
	lookup    catalog.Lookup
	evaluator Evaluator
	pricing   Pricing
}

func NewSummaryBuilder(lookup catalog.Lookup, evaluator Evaluator, pricing Pricing) *SummaryBuilder {
	return &SummaryBuilder{lookup: lookup, evaluator: evaluator, pricing: pricing}
}

func (b *SummaryBuilder) Build(ctx context.Context, tenantID string, c *Cart) (Summary, error) {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.MenuItemID)
	}

	items, err := b.lookup.Items(ctx, tenantID, ids)
	if err != nil {
		return Summary{}, fmt.Errorf("cannot hydrate cart %s: %w", c.ID, err)
	}
	return BuildSummary(c, items, b.evaluator, b.pricing), nil
}

func (b *SummaryBuilder) Pricing() Pricing {
	return b.pricing
}
