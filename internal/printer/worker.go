package printer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/ticketstream"
	"github.com/appetiteclub/ordering/pkg/enums/ackstatus"
	"github.com/appetiteclub/ordering/pkg/event"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultScanInterval = 5 * time.Second
	DefaultMaxRetries   = 3
	DefaultConcurrency  = 4
)

var ErrScanInProgress = errors.New("print scan already in progress")

type Config struct {
	ScanInterval time.Duration
	MaxRetries   int
	Concurrency  int
}

func (c Config) withDefaults() Config {
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Worker scans for pending prints on a timer and whenever the hub announces
// a new ticket waiting for a printer. Scans never overlap.
type Worker struct {
	queue   *kitchen.Queue
	devices *kitchen.DeviceRegistry
	hub     *ticketstream.Hub
	printer Printer
	cfg     Config
	logger  apt.Logger

	scanning    atomic.Bool
	nudges      chan struct{}
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewWorker(queue *kitchen.Queue, devices *kitchen.DeviceRegistry, hub *ticketstream.Hub, printer Printer, cfg Config, logger apt.Logger) *Worker {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if printer == nil {
		printer = NewLogPrinter(logger)
	}
	return &Worker{
		queue:   queue,
		devices: devices,
		hub:     hub,
		printer: printer,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		nudges:  make(chan struct{}, 1),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if w.hub != nil {
		w.unsubscribe = w.hub.SubscribeAll(w.nudge)
	}

	w.wg.Add(1)
	go w.loop(runCtx)

	w.logger.Info("print worker started",
		"scan_interval", w.cfg.ScanInterval.String(),
		"max_retries", w.cfg.MaxRetries,
		"concurrency", w.cfg.Concurrency,
	)
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("print worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nudge runs inside hub delivery and only signals the loop.
func (w *Worker) nudge(evt event.TicketEvent) {
	if !evt.IsPendingPrint() {
		return
	}
	select {
	case w.nudges <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.trigger(ctx, "tick")
		case <-w.nudges:
			w.trigger(ctx, "nudge")
		}
	}
}

func (w *Worker) trigger(ctx context.Context, source string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.Scan(ctx); errors.Is(err, ErrScanInProgress) {
			w.logger.Debug("print scan skipped", "trigger", source)
		}
	}()
}

// Scan runs one pass over every online printer. It returns
// ErrScanInProgress when another pass is still running.
func (w *Worker) Scan(ctx context.Context) error {
	if !w.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer w.scanning.Store(false)

	printers, err := w.devices.PrintersAcrossTenants(ctx)
	if err != nil {
		w.logger.Error("cannot list printers", "error", err)
		return err
	}

	requeued := make(map[string]bool)
	for _, p := range printers {
		if requeued[p.TenantID] {
			continue
		}
		requeued[p.TenantID] = true
		n, err := w.queue.RequeueFailed(ctx, p.TenantID, w.cfg.MaxRetries)
		if err != nil {
			w.logger.Error("cannot requeue failed prints", "tenant_id", p.TenantID, "error", err)
			continue
		}
		if n > 0 {
			w.logger.Info("requeued failed prints", "tenant_id", p.TenantID, "count", n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, p := range printers {
		p := p
		g.Go(func() error {
			w.serve(gctx, p)
			return nil
		})
	}
	return g.Wait()
}

// serve prints at most one ticket on the given device.
func (w *Worker) serve(ctx context.Context, device kitchen.Device) {
	log := w.logger.With("tenant_id", device.TenantID, "device_id", device.ID)

	ticket, err := w.queue.OldestPendingPrint(ctx, device.TenantID)
	if err != nil {
		log.Error("cannot load pending print", "error", err)
		return
	}
	if ticket == nil {
		return
	}

	claimed, err := w.queue.ClaimForPrint(ctx, device.TenantID, ticket.ID, device.ID)
	if err != nil {
		log.Error("cannot claim ticket", "ticket_id", ticket.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	w.ack(ctx, device, ticket.ID, ackstatus.Statuses.Printing.Code(), "")

	if err := w.printer.Print(ctx, device, *ticket); err != nil {
		log.Error("print failed", "ticket_id", ticket.ID, "error", err)
		w.ack(ctx, device, ticket.ID, ackstatus.Statuses.Failed.Code(), err.Error())
		return
	}
	w.ack(ctx, device, ticket.ID, ackstatus.Statuses.Printed.Code(), "")
}

func (w *Worker) ack(ctx context.Context, device kitchen.Device, ticketID, status, notes string) {
	_, err := w.queue.Acknowledge(ctx, device.TenantID, ticketID, kitchen.AckInput{
		DeviceID: device.ID,
		Status:   status,
		Notes:    notes,
	})
	if err != nil {
		w.logger.Error("cannot record print acknowledgement",
			"tenant_id", device.TenantID,
			"ticket_id", ticketID,
			"ack_status", status,
			"error", err,
		)
	}
}
