package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/mongo"
)

// connect starts a Mongo backend with the same keys the service reads.
func connect(ctx context.Context, config *apt.Config, logger apt.Logger) (*mongo.Backend, error) {
	backend := mongo.NewBackend(config, logger)
	if err := backend.Start(ctx); err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	logger.Info("Connected to MongoDB")
	return backend, nil
}

func demoTenant(config *apt.Config) string {
	return config.GetStringOrDef("seeding.tenant", "demo")
}
