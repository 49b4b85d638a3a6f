package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/pkg/enums/ackstatus"
	"github.com/appetiteclub/ordering/pkg/enums/channel"
	"github.com/appetiteclub/ordering/pkg/enums/printstatus"
	"github.com/appetiteclub/ordering/pkg/enums/ticketstatus"
	"github.com/appetiteclub/ordering/pkg/event"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const maxAckAttempts = 5

// Publisher receives ticket events after they are persisted.
type Publisher interface {
	Publish(tenantID string, evt event.TicketEvent)
}

type Queue struct {
	backend   tenant.Backend
	devices   *DeviceRegistry
	publisher Publisher
	logger    apt.Logger
	now       func() time.Time
}

func NewQueue(backend tenant.Backend, devices *DeviceRegistry, publisher Publisher, logger apt.Logger) *Queue {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Queue{
		backend:   backend,
		devices:   devices,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (q *Queue) tickets(tenantID string) tenant.Collection {
	return tenant.Scope(q.backend, tenantID).Collection(TicketsCollection)
}

func (q *Queue) acks(tenantID string) tenant.Collection {
	return tenant.Scope(q.backend, tenantID).Collection(AcknowledgementCollection)
}

// Enqueue stores a new pending ticket and announces it.
func (q *Queue) Enqueue(ctx context.Context, tenantID string, req EnqueueRequest) (*Ticket, error) {
	channels, err := q.channels(ctx, tenantID, req.Channels)
	if err != nil {
		return nil, err
	}

	t := &Ticket{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		OrderID:     req.OrderID,
		CartID:      req.CartID,
		Status:      ticketstatus.Statuses.Pending.Code(),
		PrintStatus: printstatus.Statuses.NotRequired.Code(),
		Channels:    channels,
		Items:       req.Items,
		Totals:      req.Totals,
		Customer:    req.Customer,
		Notes:       req.Notes,
		EnqueuedAt:  q.now(),
	}
	if t.Items == nil {
		t.Items = []TicketItem{}
	}
	if t.HasChannel(channel.Channels.Print.Code()) {
		t.PrintStatus = printstatus.Statuses.Pending.Code()
	}

	doc, err := tenant.Encode(t)
	if err != nil {
		return nil, err
	}
	if err := q.tickets(tenantID).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("cannot insert ticket: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = t.EnqueuedAt, t.EnqueuedAt

	q.logger.Info("ticket enqueued", "tenant_id", tenantID, "ticket_id", t.ID, "order_id", t.OrderID, "print_status", t.PrintStatus)
	q.publish(tenantID, event.EventTicketCreated, t, nil)
	return t, nil
}

// channels honours an explicit list when it names a known channel. Otherwise
// every ticket goes to displays, and to printers when the tenant has one.
func (q *Queue) channels(ctx context.Context, tenantID string, requested []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, name := range requested {
		if c := channel.ByName(name); c != nil && !seen[c.Code()] {
			seen[c.Code()] = true
			out = append(out, c.Code())
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	out = []string{channel.Channels.Display.Code()}
	hasPrinter, err := q.devices.HasPrinter(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if hasPrinter {
		out = append(out, channel.Channels.Print.Code())
	}
	return out, nil
}

// Acknowledge applies a device report to a ticket, records it and announces
// it. An unknown ticket yields nil and no error.
func (q *Queue) Acknowledge(ctx context.Context, tenantID, ticketID string, in AckInput) (*AckResult, error) {
	status := ackstatus.ByName(in.Status)
	if status == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAckStatus, in.Status)
	}

	var t *Ticket
	for attempt := 0; ; attempt++ {
		current, err := q.Get(ctx, tenantID, ticketID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}

		now := q.now()
		fields := transition(current, *status)
		fields["acknowledged_by"] = in.DeviceID
		fields["acknowledged_at"] = now

		// Guard on the state the transition was computed from.
		filter := bson.M{
			"_id":          current.ID,
			"status":       current.Status,
			"print_status": current.PrintStatus,
			"retry_count":  current.RetryCount,
		}
		res, err := q.tickets(tenantID).UpdateOne(ctx, filter, tenant.Set{Fields: fields})
		if err != nil {
			return nil, fmt.Errorf("cannot update ticket: %w", err)
		}
		if res.Matched == 1 {
			t = apply(current, fields)
			t.AcknowledgedAt = &now
			t.AcknowledgedBy = in.DeviceID
			break
		}
		if attempt+1 >= maxAckAttempts {
			return nil, fmt.Errorf("cannot acknowledge ticket %s: %w", ticketID, ErrAckConflict)
		}
	}

	ack := &Acknowledgement{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		TicketID:       t.ID,
		DeviceID:       in.DeviceID,
		Status:         status.Code(),
		Notes:          in.Notes,
		AcknowledgedAt: *t.AcknowledgedAt,
	}
	doc, err := tenant.Encode(ack)
	if err != nil {
		return nil, err
	}
	if err := q.acks(tenantID).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("cannot insert acknowledgement: %w", err)
	}

	q.logger.Info("ticket acknowledged", "tenant_id", tenantID, "ticket_id", t.ID, "device_id", in.DeviceID, "ack_status", ack.Status)
	q.publish(tenantID, event.EventTicketAcknowledged, t, ack)
	return &AckResult{Ticket: t, Acknowledgement: ack}, nil
}

// transition returns the fields an acknowledgement changes.
func transition(t *Ticket, s ackstatus.Status) bson.M {
	pending := ticketstatus.Statuses.Pending.Code()
	fields := bson.M{}

	switch s {
	case ackstatus.Statuses.Received:
		if t.Status == pending {
			fields["status"] = ticketstatus.Statuses.Acknowledged.Code()
		}
	case ackstatus.Statuses.Printing:
		fields["print_status"] = printstatus.Statuses.Printing.Code()
	case ackstatus.Statuses.Printed:
		if t.Status == pending {
			fields["status"] = ticketstatus.Statuses.Acknowledged.Code()
		}
		fields["print_status"] = printstatus.Statuses.Printed.Code()
	case ackstatus.Statuses.Completed:
		fields["status"] = ticketstatus.Statuses.Completed.Code()
	case ackstatus.Statuses.Failed:
		fields["print_status"] = printstatus.Statuses.Failed.Code()
		fields["retry_count"] = t.RetryCount + 1
	}
	return fields
}

func apply(t *Ticket, fields bson.M) *Ticket {
	out := *t
	if v, ok := fields["status"].(string); ok {
		out.Status = v
	}
	if v, ok := fields["print_status"].(string); ok {
		out.PrintStatus = v
	}
	if v, ok := fields["retry_count"].(int); ok {
		out.RetryCount = v
	}
	return &out
}

// ClaimForPrint moves a pending print to printing for one device. Only one
// of any number of concurrent callers gets true.
func (q *Queue) ClaimForPrint(ctx context.Context, tenantID, ticketID, deviceID string) (bool, error) {
	res, err := q.tickets(tenantID).UpdateOne(ctx,
		bson.M{"_id": ticketID, "print_status": printstatus.Statuses.Pending.Code()},
		tenant.Set{Fields: bson.M{
			"print_status":    printstatus.Statuses.Printing.Code(),
			"acknowledged_by": deviceID,
		}})
	if err != nil {
		return false, fmt.Errorf("cannot claim ticket: %w", err)
	}
	return res.Matched == 1, nil
}

func (q *Queue) OldestPendingPrint(ctx context.Context, tenantID string) (*Ticket, error) {
	tickets, err := tenant.FindAll[Ticket](ctx, q.tickets(tenantID),
		bson.M{"print_status": printstatus.Statuses.Pending.Code()},
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "enqueued_at"}}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("cannot find pending print: %w", err)
	}
	if len(tickets) == 0 {
		return nil, nil
	}
	return &tickets[0], nil
}

// RequeueFailed puts failed prints back to pending while they have retries
// left and returns how many moved.
func (q *Queue) RequeueFailed(ctx context.Context, tenantID string, maxRetries int) (int, error) {
	failed, err := tenant.FindAll[Ticket](ctx, q.tickets(tenantID), bson.M{
		"print_status": printstatus.Statuses.Failed.Code(),
		"retry_count":  bson.M{"$lt": maxRetries},
	}, tenant.FindOptions{Sort: []tenant.Sort{{Field: "enqueued_at"}}})
	if err != nil {
		return 0, fmt.Errorf("cannot find failed prints: %w", err)
	}

	moved := 0
	for _, t := range failed {
		res, err := q.tickets(tenantID).UpdateOne(ctx,
			bson.M{"_id": t.ID, "print_status": printstatus.Statuses.Failed.Code(), "retry_count": t.RetryCount},
			tenant.Set{Fields: bson.M{"print_status": printstatus.Statuses.Pending.Code()}})
		if err != nil {
			return moved, fmt.Errorf("cannot requeue ticket: %w", err)
		}
		if res.Matched == 1 {
			moved++
		}
	}
	return moved, nil
}

// Outstanding lists tickets not yet completed, oldest first.
func (q *Queue) Outstanding(ctx context.Context, tenantID string) ([]Ticket, error) {
	tickets, err := tenant.FindAll[Ticket](ctx, q.tickets(tenantID),
		bson.M{"status": bson.M{"$ne": ticketstatus.Statuses.Completed.Code()}},
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "enqueued_at"}}})
	if err != nil {
		return nil, fmt.Errorf("cannot list outstanding tickets: %w", err)
	}
	return tickets, nil
}

func (q *Queue) Get(ctx context.Context, tenantID, ticketID string) (*Ticket, error) {
	t, err := tenant.FindOne[Ticket](ctx, q.tickets(tenantID), bson.M{"_id": ticketID})
	if err != nil {
		return nil, fmt.Errorf("cannot find ticket: %w", err)
	}
	return t, nil
}

func (q *Queue) ForOrder(ctx context.Context, tenantID, orderID string) (*Ticket, error) {
	t, err := tenant.FindOne[Ticket](ctx, q.tickets(tenantID), bson.M{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("cannot find ticket for order: %w", err)
	}
	return t, nil
}

func (q *Queue) Acknowledgements(ctx context.Context, tenantID, ticketID string) ([]Acknowledgement, error) {
	acks, err := tenant.FindAll[Acknowledgement](ctx, q.acks(tenantID),
		bson.M{"ticket_id": ticketID},
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "acknowledged_at"}}})
	if err != nil {
		return nil, fmt.Errorf("cannot list acknowledgements: %w", err)
	}
	return acks, nil
}

func (q *Queue) publish(tenantID, eventType string, t *Ticket, ack *Acknowledgement) {
	if q.publisher == nil {
		return
	}
	q.publisher.Publish(tenantID, NewTicketEvent(eventType, t, ack))
}

func NewTicketEvent(eventType string, t *Ticket, ack *Acknowledgement) event.TicketEvent {
	evt := event.TicketEvent{
		EventType:   eventType,
		OccurredAt:  time.Now().UTC(),
		TenantID:    t.TenantID,
		TicketID:    t.ID,
		OrderID:     t.OrderID,
		Status:      t.Status,
		PrintStatus: t.PrintStatus,
	}
	if ack != nil {
		evt.DeviceID = ack.DeviceID
		evt.AckStatus = ack.Status
		evt.OccurredAt = ack.AcknowledgedAt
	}
	if data, err := json.Marshal(t); err == nil {
		evt.Ticket = data
	}
	return evt
}
