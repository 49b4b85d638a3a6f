package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/order"
	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
)

// ReconcileTickets enqueues kitchen tickets for orders that were persisted
// without one. Tenants come from reconcile.tenants, or every tenant that has
// orders.
func ReconcileTickets(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	backend, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer backend.Stop(ctx)

	var tenants []string
	if raw, ok := config.GetString("reconcile.tenants"); ok && raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tenants = append(tenants, t)
			}
		}
	}

	repaired, err := reconcile(ctx, backend, tenants, logger)
	if err != nil {
		return err
	}

	total := 0
	for tenantID, ids := range repaired {
		total += len(ids)
		logger.Info("Tenant reconciled", "tenant_id", tenantID, "tickets", len(ids))
	}
	logger.Info("Reconciliation finished", "tenants", len(repaired), "tickets", total)
	return nil
}

func reconcile(ctx context.Context, backend tenant.Backend, tenants []string, logger apt.Logger) (map[string][]string, error) {
	if len(tenants) == 0 {
		found, err := tenantsWithOrders(ctx, backend)
		if err != nil {
			return nil, err
		}
		tenants = found
	}

	// Tickets created here reach printers on the next worker scan and
	// displays on their next snapshot.
	devices := kitchen.NewDeviceRegistry(backend)
	queue := kitchen.NewQueue(backend, devices, nil, logger)
	orders := order.NewService(order.NewStoreRepository(backend), nil, nil, queue, logger)

	out := make(map[string][]string, len(tenants))
	for _, tenantID := range tenants {
		ids, err := orders.ReconcileTickets(ctx, tenantID)
		if err != nil {
			return out, fmt.Errorf("reconcile tenant %s: %w", tenantID, err)
		}
		out[tenantID] = ids
	}
	return out, nil
}

func tenantsWithOrders(ctx context.Context, backend tenant.Backend) ([]string, error) {
	docs, err := tenant.CrossTenant(backend).Find(ctx, order.Collection, bson.M{}, tenant.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	seen := make(map[string]bool)
	var tenants []string
	for _, doc := range docs {
		id, _ := doc[tenant.FieldTenantID].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		tenants = append(tenants, id)
	}
	sort.Strings(tenants)
	return tenants, nil
}
