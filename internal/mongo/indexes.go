package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// indexes are keyed by collection. Every query is tenant scoped, so tenant_id
// leads each compound key.
var indexes = map[string][]bson.D{
	"carts": {
		{{Key: "tenant_id", Value: 1}, {Key: "device_id", Value: 1}, {Key: "status", Value: 1}},
		{{Key: "tenant_id", Value: 1}, {Key: "session_id", Value: 1}, {Key: "status", Value: 1}},
		{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
	},
	"orders": {
		{{Key: "tenant_id", Value: 1}, {Key: "cart_id", Value: 1}},
	},
	"kitchen_tickets": {
		{{Key: "tenant_id", Value: 1}, {Key: "print_status", Value: 1}, {Key: "enqueued_at", Value: 1}},
		{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "enqueued_at", Value: 1}},
		{{Key: "tenant_id", Value: 1}, {Key: "order_id", Value: 1}},
	},
	"ticket_acknowledgements": {
		{{Key: "tenant_id", Value: 1}, {Key: "ticket_id", Value: 1}, {Key: "acknowledged_at", Value: 1}},
	},
	"devices": {
		{{Key: "capabilities", Value: 1}, {Key: "status", Value: 1}},
	},
	"menu_items": {
		{{Key: "tenant_id", Value: 1}, {Key: "available", Value: 1}},
	},
}

var uniqueIndexes = map[string][]bson.D{
	"devices": {
		{{Key: "tenant_id", Value: 1}, {Key: "device_id", Value: 1}},
	},
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, keys := range indexes {
		models := make([]mongo.IndexModel, 0, len(keys))
		for _, k := range keys {
			models = append(models, mongo.IndexModel{Keys: k})
		}
		for _, k := range uniqueIndexes[name] {
			models = append(models, mongo.IndexModel{Keys: k, Options: options.Index().SetUnique(true)})
		}
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("cannot create %s indexes: %w", name, err)
		}
	}
	return nil
}

// Collections lists every collection the service writes, sorted.
func Collections() []string {
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
