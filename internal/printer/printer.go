// Package printer drives print-capable devices: it claims pending tickets,
// hands them to a Printer and records the outcome as acknowledgements.
package printer

import (
	"context"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/kitchen"
)

// Printer renders one ticket on one device.
type Printer interface {
	Print(ctx context.Context, device kitchen.Device, ticket kitchen.Ticket) error
}

// LogPrinter stands in for a real driver and only logs.
type LogPrinter struct {
	logger apt.Logger
}

func NewLogPrinter(logger apt.Logger) *LogPrinter {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &LogPrinter{logger: logger}
}

func (p *LogPrinter) Print(ctx context.Context, device kitchen.Device, ticket kitchen.Ticket) error {
	p.logger.Info("printing ticket",
		"tenant_id", ticket.TenantID,
		"ticket_id", ticket.ID,
		"order_id", ticket.OrderID,
		"device_id", device.ID,
		"items", len(ticket.Items),
	)
	return nil
}
