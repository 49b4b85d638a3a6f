// Package seeding loads the demo tenant: a small menu and one display and
// one printer.
package seeding

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/appetiteclub/ordering/internal/catalog"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DemoTenant      = "demo"
	seedApplication = "ordering"

	MenuSeedID    = "2025-01-10_demo_menu_items_v1"
	DevicesSeedID = "2025-01-10_demo_devices_v1"
)

var demoMenu = []catalog.MenuItem{
	{ID: "margherita", Name: "Margherita", Price: 10, Currency: "USD", Available: true},
	{ID: "diavola", Name: "Diavola", Price: 12.5, Currency: "USD", Available: true},
	{ID: "quattro-formaggi", Name: "Quattro Formaggi", Price: 13, Currency: "USD", Available: true},
	{ID: "tiramisu", Name: "Tiramisu", Price: 6.5, Currency: "USD", Available: true},
	{ID: "lemonade", Name: "Lemonade", Price: 3, Currency: "USD", Available: true},
	{ID: "truffle-special", Name: "Truffle Special", Price: 24, Currency: "USD", Available: false},
}

var demoDevices = []kitchen.RegisterRequest{
	{ID: "display-1", Label: "Pass display", Type: "display", Capabilities: []string{"display"}},
	{ID: "printer-1", Label: "Kitchen printer", Type: "printer", Capabilities: []string{"print"}},
}

func DemoMenu() []catalog.MenuItem {
	return append([]catalog.MenuItem(nil), demoMenu...)
}

// DemoSeeds returns the demo seeds for tenantID.
func DemoSeeds(backend tenant.Backend, tenantID string, logger apt.Logger) []seed.Seed {
	menu := catalog.NewStoreLookup(backend)
	devices := kitchen.NewDeviceRegistry(backend)

	return []seed.Seed{
		{
			ID:          MenuSeedID,
			Description: "Create demo menu items",
			Run: func(ctx context.Context) error {
				for _, item := range demoMenu {
					if err := menu.Put(ctx, tenantID, item); err != nil {
						return fmt.Errorf("cannot seed menu item %s: %w", item.ID, err)
					}
				}
				logger.Info("demo menu seeded", "tenant_id", tenantID, "count", len(demoMenu))
				return nil
			},
		},
		{
			ID:          DevicesSeedID,
			Description: "Register demo display and printer",
			Run: func(ctx context.Context) error {
				for _, d := range demoDevices {
					if _, err := devices.Register(ctx, tenantID, d); err != nil {
						return fmt.Errorf("cannot seed device %s: %w", d.ID, err)
					}
				}
				logger.Info("demo devices seeded", "tenant_id", tenantID, "count", len(demoDevices))
				return nil
			},
		},
	}
}

// ApplyDemo runs the demo seeds. With a Mongo database the seeds are tracked
// and run once; without one they simply run, which is safe because both
// seeds upsert.
func ApplyDemo(ctx context.Context, backend tenant.Backend, db *mongo.Database, tenantID string, logger apt.Logger) error {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if tenantID == "" {
		tenantID = DemoTenant
	}
	seeds := DemoSeeds(backend, tenantID, logger)

	if db == nil {
		for _, s := range seeds {
			if err := s.Run(ctx); err != nil {
				return fmt.Errorf("demo seed %s failed: %w", s.ID, err)
			}
		}
		return nil
	}

	tracker := seed.NewMongoTracker(db)
	if err := seed.Apply(ctx, tracker, seeds, seedApplication); err != nil {
		return fmt.Errorf("demo seed failed: %w", err)
	}
	return nil
}

// SeedIDs lists the tracker ids of the demo seeds.
func SeedIDs() []string {
	return []string{MenuSeedID, DevicesSeedID}
}
