package cart

import (
	"math"
	"strings"
)

const MaxQuantity = 99

// Normalize cleans client line items: quantities are floored and capped,
// blank ids and non-positive quantities are dropped, and duplicates are
// merged keeping first-seen order and the last non-empty note.
func Normalize(raw []RawItem) []Item {
	out := make([]Item, 0, len(raw))
	index := make(map[string]int, len(raw))

	for _, r := range raw {
		if math.IsNaN(r.Quantity) || math.IsInf(r.Quantity, 0) {
			continue
		}
		qty := math.Floor(r.Quantity)
		if qty <= 0 {
			continue
		}
		id := strings.TrimSpace(r.MenuItemID)
		if id == "" {
			continue
		}
		note := strings.TrimSpace(r.Note)

		if i, ok := index[id]; ok {
			out[i].Quantity = capQuantity(float64(out[i].Quantity) + qty)
			if note != "" {
				out[i].Note = note
			}
			continue
		}

		index[id] = len(out)
		out = append(out, Item{MenuItemID: id, Quantity: capQuantity(qty), Note: note})
	}
	return out
}

func capQuantity(q float64) int {
	if q > MaxQuantity {
		return MaxQuantity
	}
	return int(q)
}

// Raw turns stored items back into client items.
func Raw(items []Item) []RawItem {
	out := make([]RawItem, 0, len(items))
	for _, it := range items {
		out = append(out, RawItem{MenuItemID: it.MenuItemID, Quantity: float64(it.Quantity), Note: it.Note})
	}
	return out
}
