package kitchenstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/ordering/internal/ticketstream"
	"github.com/appetiteclub/ordering/pkg/event"
	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// Relay mirrors hub traffic onto a broker topic and feeds events from other
// instances back into the local hub. Events carry the origin instance id so
// nothing is forwarded twice.
type Relay struct {
	hub        *ticketstream.Hub
	publisher  events.Publisher
	subscriber events.Subscriber
	topic      string
	origin     string
	logger     apt.Logger

	outbox      chan event.TicketEvent
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewRelay wires a relay. Either side may be nil: a nil subscriber only
// forwards, a nil publisher only receives.
func NewRelay(hub *ticketstream.Hub, publisher events.Publisher, subscriber events.Subscriber, topic string, logger apt.Logger) *Relay {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if topic == "" {
		topic = event.KitchenTicketsTopic
	}
	return &Relay{
		hub:        hub,
		publisher:  publisher,
		subscriber: subscriber,
		topic:      topic,
		origin:     uuid.NewString(),
		logger:     logger,
		outbox:     make(chan event.TicketEvent, 256),
	}
}

func (r *Relay) Origin() string {
	return r.origin
}

func (r *Relay) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	if r.subscriber != nil {
		if err := r.subscriber.Subscribe(runCtx, r.topic, r.receive); err != nil {
			cancel()
			return fmt.Errorf("cannot subscribe to %s: %w", r.topic, err)
		}
	}

	if r.publisher != nil {
		r.unsubscribe = r.hub.SubscribeAll(r.enqueue)
		r.wg.Add(1)
		go r.drain(runCtx)
	}

	r.logger.Info("ticket relay started", "topic", r.topic, "origin", r.origin)
	return nil
}

func (r *Relay) Stop(ctx context.Context) error {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.logger.Info("ticket relay stopped")
	return nil
}

// enqueue runs inside hub delivery, so it never blocks on the broker.
func (r *Relay) enqueue(evt event.TicketEvent) {
	if evt.Origin != "" && evt.Origin != r.origin {
		return
	}
	evt.Origin = r.origin

	select {
	case r.outbox <- evt:
	default:
		r.logger.Info("relay outbox full, dropping event", "ticket_id", evt.TicketID)
	}
}

func (r *Relay) drain(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-r.outbox:
			r.forward(evt)
		}
	}
}

func (r *Relay) forward(evt event.TicketEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("cannot encode ticket event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, r.topic, data); err != nil {
		r.logger.Error("cannot relay ticket event", "ticket_id", evt.TicketID, "error", err)
	}
}

func (r *Relay) receive(ctx context.Context, msg []byte) error {
	var evt event.TicketEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		r.logger.Debug("skipping malformed ticket event", "error", err)
		return nil
	}
	if evt.Origin == r.origin || evt.TenantID == "" {
		return nil
	}

	r.hub.Publish(evt.TenantID, evt)
	return nil
}
