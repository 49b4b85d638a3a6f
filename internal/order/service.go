package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/cart"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/pkg/enums/orderstatus"
	"github.com/google/uuid"
)

type Carts interface {
	GetActiveCart(ctx context.Context, tenantID, cartID string) (*cart.Cart, error)
	SetPromoCode(ctx context.Context, tenantID, cartID string, code *string) error
	CheckOut(ctx context.Context, tenantID, cartID string) error
}

type Summarizer interface {
	Build(ctx context.Context, tenantID string, c *cart.Cart) (cart.Summary, error)
}

type Tickets interface {
	Enqueue(ctx context.Context, tenantID string, req kitchen.EnqueueRequest) (*kitchen.Ticket, error)
	ForOrder(ctx context.Context, tenantID, orderID string) (*kitchen.Ticket, error)
}

type Service struct {
	repo      Repository
	carts     Carts
	summaries Summarizer
	tickets   Tickets
	logger    apt.Logger
	now       func() time.Time
}

func NewService(repo Repository, carts Carts, summaries Summarizer, tickets Tickets, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Service{
		repo:      repo,
		carts:     carts,
		summaries: summaries,
		tickets:   tickets,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitOrder checks out a cart. The order is written before the cart is
// closed and the ticket is enqueued last; a failed enqueue leaves the order
// in place and returns a receipt without a ticket id.
func (s *Service) SubmitOrder(ctx context.Context, tenantID string, req SubmitRequest) (*Receipt, error) {
	log := s.logger.With("tenant_id", tenantID, "cart_id", req.CartID)

	c, err := s.carts.GetActiveCart(ctx, tenantID, req.CartID)
	if err != nil {
		return nil, err
	}

	if req.PromoCode != nil {
		code := cart.CleanPromoCode(req.PromoCode)
		if !cart.SamePromoCode(c.PromoCode, code) {
			if err := s.carts.SetPromoCode(ctx, tenantID, c.ID, code); err != nil {
				return nil, err
			}
			c.PromoCode = code
		}
	}

	summary, err := s.summaries.Build(ctx, tenantID, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderSubmissionFailed, err)
	}

	o := newOrder(c, summary, req, s.now())
	o.TenantID = tenantID
	if err := s.repo.Create(ctx, tenantID, o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderSubmissionFailed, err)
	}

	if err := s.carts.CheckOut(ctx, tenantID, c.ID); err != nil {
		cancelled := orderstatus.Statuses.Cancelled.Code()
		if serr := s.repo.SetStatus(ctx, tenantID, o.ID, cancelled); serr != nil {
			log.Error("cannot cancel orphaned order", "order_id", o.ID, "error", serr)
		}
		if errors.Is(err, cart.ErrCartClosed) {
			return nil, cart.ErrCartClosed
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderSubmissionFailed, err)
	}

	receipt := &Receipt{Order: o, Items: summary.Lines}

	ticket, err := s.tickets.Enqueue(ctx, tenantID, ticketRequest(o))
	if err != nil {
		log.Error("order persisted without kitchen ticket", "order_id", o.ID, "error", err)
		return receipt, nil
	}
	receipt.TicketID = ticket.ID

	log.Info("order submitted", "order_id", o.ID, "ticket_id", ticket.ID, "total", o.Total)
	return receipt, nil
}

func (s *Service) GetOrder(ctx context.Context, tenantID, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ReconcileTickets enqueues a ticket for every active order that has none
// and returns the ids it repaired.
func (s *Service) ReconcileTickets(ctx context.Context, tenantID string) ([]string, error) {
	orders, err := s.repo.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var repaired []string
	for i := range orders {
		o := &orders[i]
		existing, err := s.tickets.ForOrder(ctx, tenantID, o.ID)
		if err != nil {
			return repaired, err
		}
		if existing != nil {
			continue
		}
		if _, err := s.tickets.Enqueue(ctx, tenantID, ticketRequest(o)); err != nil {
			return repaired, fmt.Errorf("cannot enqueue ticket for order %s: %w", o.ID, err)
		}
		s.logger.Info("ticket reconciled", "tenant_id", tenantID, "order_id", o.ID)
		repaired = append(repaired, o.ID)
	}
	return repaired, nil
}

func newOrder(c *cart.Cart, summary cart.Summary, req SubmitRequest, now time.Time) *Order {
	o := &Order{
		ID:          uuid.NewString(),
		CartID:      c.ID,
		Status:      orderstatus.Statuses.Pending.Code(),
		Subtotal:    summary.Subtotal,
		DeliveryFee: summary.DeliveryFee,
		Discount:    summary.Discount,
		Total:       summary.Total,
		Currency:    summary.Currency,
		Items:       snapshotItems(summary.Lines),
		Notes:       strings.TrimSpace(req.Notes),
		SubmittedAt: now,
	}
	if summary.Promotion != nil {
		code := summary.Promotion.Code
		o.PromoCode = &code
		o.Promotion = summary.Promotion
	}
	if !req.Customer.Empty() {
		customer := *req.Customer
		o.Customer = &customer
	}
	return o
}

func ticketRequest(o *Order) kitchen.EnqueueRequest {
	items := make([]kitchen.TicketItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, kitchen.TicketItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Note:       it.Note,
		})
	}

	req := kitchen.EnqueueRequest{
		OrderID: o.ID,
		CartID:  o.CartID,
		Items:   items,
		Totals: kitchen.Totals{
			Subtotal:    o.Subtotal,
			DeliveryFee: o.DeliveryFee,
			Discount:    o.Discount,
			Total:       o.Total,
			Currency:    o.Currency,
		},
		Notes: o.Notes,
	}
	if o.Customer != nil {
		req.Customer = &kitchen.Customer{
			Name:  o.Customer.Name,
			Phone: o.Customer.Phone,
			Email: o.Customer.Email,
		}
	}
	return req
}
