package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/mongo"
	"github.com/appetiteclub/ordering/internal/seeding"
	"go.mongodb.org/mongo-driver/bson"
)

// ClearDemo removes every document of the demo tenant and its seed records
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo data cleanup...")

	backend, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer backend.Stop(ctx)

	db := backend.GetDatabase()
	tenantID := demoTenant(config)

	for _, name := range mongo.Collections() {
		res, err := db.Collection(name).DeleteMany(ctx, bson.M{"tenant_id": tenantID})
		if err != nil {
			return fmt.Errorf("delete demo %s: %w", name, err)
		}
		logger.Info("Deleted demo documents", "collection", name, "count", res.DeletedCount)
	}

	res, err := db.Collection("_seeds").DeleteMany(ctx, bson.M{"_id": bson.M{"$in": seeding.SeedIDs()}})
	if err != nil {
		return fmt.Errorf("delete demo seed tracker: %w", err)
	}
	logger.Info("Cleared demo seed tracker", "deleted", res.DeletedCount)
	return nil
}
