package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/seeding"
)

// SeedDemo loads the demo menu and devices for the demo tenant
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo seeding process...")

	backend, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer backend.Stop(ctx)

	tenantID := demoTenant(config)
	if err := seeding.ApplyDemo(ctx, backend, backend.GetDatabase(), tenantID, logger); err != nil {
		return fmt.Errorf("seed demo tenant %s: %w", tenantID, err)
	}
	return nil
}
