// Package promo decides whether a promotion code discounts an order.
package promo

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
)

type Kind string

const (
	Percentage Kind = "percentage"
	Flat       Kind = "flat"
	Delivery   Kind = "delivery"
)

const (
	ReasonUnknownCode   = "unknown_promo_code"
	ReasonMinimumNotMet = "minimum_not_met"
	ReasonNoDeliveryFee = "no_delivery_fee"
	ReasonNoDiscount    = "no_discount"
)

// Definition describes one promotion. Rate applies to Percentage, Amount to
// Flat; Delivery needs neither.
type Definition struct {
	Code        string  `json:"code"`
	Kind        Kind    `json:"kind"`
	Rate        float64 `json:"rate,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	MinSubtotal float64 `json:"min_subtotal,omitempty"`
	Description string  `json:"description,omitempty"`
}

type Applied struct {
	Code        string  `json:"code" bson:"code"`
	Kind        Kind    `json:"kind" bson:"kind"`
	Discount    float64 `json:"discount" bson:"discount"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
}

// Result carries either an applied promotion or the reason none applied.
// Both are empty when no code was given.
type Result struct {
	Applied *Applied `json:"applied,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func (r Result) Discount() float64 {
	if r.Applied == nil {
		return 0
	}
	return r.Applied.Discount
}

var DefaultDefinitions = []Definition{
	{Code: "WELCOME20", Kind: Percentage, Rate: 0.20, MinSubtotal: 20, Description: "20% off orders of 20 or more"},
	{Code: "FREEDELIVERY", Kind: Delivery, Description: "Free delivery"},
	{Code: "TAKE5", Kind: Flat, Amount: 5, MinSubtotal: 25, Description: "5 off orders of 25 or more"},
}

type Evaluator struct {
	defs map[string]Definition
}

func NewEvaluator(defs []Definition) *Evaluator {
	e := &Evaluator{
		defs: make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		e.defs[e.Normalize(d.Code)] = d
	}
	return e
}

// Normalize trims and case-folds a code. The result is only meant for
// comparison. A Caser is stateful, so each call gets its own.
func (e *Evaluator) Normalize(code string) string {
	return cases.Fold().String(strings.TrimSpace(code))
}

func (e *Evaluator) Evaluate(code string, subtotal, deliveryFee float64) Result {
	key := e.Normalize(code)
	if key == "" {
		return Result{}
	}

	def, ok := e.defs[key]
	if !ok {
		return Result{Reason: ReasonUnknownCode}
	}

	if subtotal < def.MinSubtotal {
		return Result{Reason: ReasonMinimumNotMet}
	}

	var discount float64
	switch def.Kind {
	case Percentage:
		discount = subtotal * def.Rate
	case Flat:
		discount = def.Amount
	case Delivery:
		if deliveryFee <= 0 {
			return Result{Reason: ReasonNoDeliveryFee}
		}
		discount = deliveryFee
	}

	discount = clamp(Round(discount), 0, Round(subtotal+deliveryFee))
	if discount <= 0 {
		return Result{Reason: ReasonNoDiscount}
	}

	return Result{Applied: &Applied{
		Code:        def.Code,
		Kind:        def.Kind,
		Discount:    discount,
		Description: def.Description,
	}}
}

// Round rounds money to cents.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
