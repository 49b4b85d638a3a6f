// Package catalog reads menu items owned by the menu service.
package catalog

import (
	"context"
)

const Collection = "menu_items"

type MenuItem struct {
	ID        string  `json:"id" bson:"_id"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"`
	Currency  string  `json:"currency" bson:"currency"`
	Available bool    `json:"available" bson:"available"`
}

// Lookup resolves menu items by id for one tenant. Ids with no record are
// simply absent from the result.
type Lookup interface {
	Items(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
