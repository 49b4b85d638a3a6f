package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/appetiteclub/ordering/internal/cart"
	"github.com/appetiteclub/ordering/internal/catalog"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/promo"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/internal/ticketstream"
)

type fixture struct {
	backend *tenant.MemoryBackend
	carts   *cart.Service
	orders  *StoreRepository
	queue   *kitchen.Queue
	devices *kitchen.DeviceRegistry
	repo    *MockRepository
	cartsM  *MockCarts
	tickets *MockTickets
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := tenant.NewMemoryBackend()

	lookup := catalog.NewStoreLookup(backend)
	if err := lookup.Put(ctx, "t-1", catalog.MenuItem{ID: "margherita", Name: "Margherita", Price: 10, Currency: "USD", Available: true}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	summaries := cart.NewSummaryBuilder(lookup, promo.NewEvaluator(promo.DefaultDefinitions), cart.DefaultPricing)
	carts := cart.NewService(cart.NewStoreRepository(backend), summaries, nil)
	devices := kitchen.NewDeviceRegistry(backend)
	queue := kitchen.NewQueue(backend, devices, ticketstream.NewHub(nil), nil)
	orders := NewStoreRepository(backend)

	f := &fixture{
		backend: backend,
		carts:   carts,
		orders:  orders,
		queue:   queue,
		devices: devices,
		repo:    &MockRepository{Inner: orders},
		cartsM:  &MockCarts{Inner: carts},
		tickets: &MockTickets{Inner: queue},
	}
	f.service = NewService(f.repo, f.cartsM, summaries, f.tickets, nil)
	return f
}

func (f *fixture) cartWith(t *testing.T, quantity float64, promoCode *string) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	view, err := f.carts.EnsureCart(ctx, "t-1", cart.Identifiers{DeviceID: "kiosk-1"}, promoCode)
	if err != nil {
		t.Fatalf("EnsureCart() error = %v", err)
	}
	items := []cart.RawItem{{MenuItemID: "margherita", Quantity: quantity}}
	view, err = f.carts.UpdateCart(ctx, "t-1", view.Cart.ID, cart.UpdateRequest{Items: &items})
	if err != nil {
		t.Fatalf("UpdateCart() error = %v", err)
	}
	return view.Cart
}

func strPtr(s string) *string { return &s }

func TestSubmitOrderScenario(t *testing.T) {
	tests := []struct {
		name            string
		printer         bool
		wantPrintStatus string
	}{
		{name: "withPrinter", printer: true, wantPrintStatus: "pending"},
		{name: "withoutPrinter", wantPrintStatus: "not_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			if tt.printer {
				_, err := f.devices.Register(ctx, "t-1", kitchen.RegisterRequest{ID: "printer-1", Capabilities: []string{"print"}})
				if err != nil {
					t.Fatal(err)
				}
			}
			c := f.cartWith(t, 2, strPtr("WELCOME20"))

			receipt, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{
				CartID:   c.ID,
				Notes:    " no basil ",
				Customer: &Customer{Name: "Ada"},
			})
			if err != nil {
				t.Fatalf("SubmitOrder() error = %v", err)
			}

			o := receipt.Order
			if o.Subtotal != 20 || o.DeliveryFee != 2.99 || o.Discount != 4 || o.Total != 18.99 {
				t.Errorf("totals = %v/%v/%v/%v, want 20/2.99/4/18.99", o.Subtotal, o.DeliveryFee, o.Discount, o.Total)
			}
			if o.PromoCode == nil || *o.PromoCode != "WELCOME20" {
				t.Errorf("promo code = %v, want WELCOME20", o.PromoCode)
			}
			if o.Status != "pending" || o.Notes != "no basil" || o.Customer == nil {
				t.Errorf("order = %+v", o)
			}
			if len(receipt.Items) != 1 || !receipt.Items[0].Hydrated() {
				t.Errorf("receipt items = %+v", receipt.Items)
			}

			got, err := f.carts.GetCart(ctx, "t-1", c.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Cart.Status != cart.StatusCheckedOut {
				t.Errorf("cart status = %q, want checked_out", got.Cart.Status)
			}

			ticket, err := f.queue.ForOrder(ctx, "t-1", o.ID)
			if err != nil || ticket == nil {
				t.Fatalf("ForOrder() = %v, %v", ticket, err)
			}
			if ticket.ID != receipt.TicketID {
				t.Errorf("ticket id = %q, receipt has %q", ticket.ID, receipt.TicketID)
			}
			if ticket.PrintStatus != tt.wantPrintStatus {
				t.Errorf("print status = %q, want %q", ticket.PrintStatus, tt.wantPrintStatus)
			}
			if len(ticket.Items) != 1 || ticket.Items[0].Quantity != 2 || ticket.Items[0].UnitPrice != 10 {
				t.Errorf("ticket items = %+v", ticket.Items)
			}
			if ticket.Totals.Total != 18.99 || ticket.Customer == nil || ticket.Customer.Name != "Ada" {
				t.Errorf("ticket = %+v", ticket)
			}
		})
	}
}

func TestSubmitOrderOnClosedCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.cartWith(t, 1, nil)
	if err := f.carts.CheckOut(ctx, "t-1", c.ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{CartID: c.ID})
	if !errors.Is(err, cart.ErrCartClosed) {
		t.Fatalf("SubmitOrder() error = %v, want ErrCartClosed", err)
	}

	tickets, err := f.queue.Outstanding(ctx, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 0 {
		t.Errorf("tickets = %d, want 0", len(tickets))
	}
}

func TestSubmitOrderUnknownCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.SubmitOrder(context.Background(), "t-1", SubmitRequest{CartID: "missing"})
	if !errors.Is(err, cart.ErrCartNotFound) {
		t.Errorf("SubmitOrder() error = %v, want ErrCartNotFound", err)
	}
}

func TestSubmitOrderPersistsPromoChangeFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.cartWith(t, 2, nil)

	receipt, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{CartID: c.ID, PromoCode: strPtr(" welcome20 ")})
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if receipt.Order.Discount != 4 {
		t.Errorf("discount = %v, want 4", receipt.Order.Discount)
	}

	got, err := f.carts.GetCart(ctx, "t-1", c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cart.PromoCode == nil || *got.Cart.PromoCode != "welcome20" {
		t.Errorf("cart promo code = %v, want welcome20", got.Cart.PromoCode)
	}
}

func TestSubmitOrderUnmetPromotionIsNotRecorded(t *testing.T) {
	f := newFixture(t)
	c := f.cartWith(t, 1, strPtr("WELCOME20"))

	receipt, err := f.service.SubmitOrder(context.Background(), "t-1", SubmitRequest{CartID: c.ID})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Order.PromoCode != nil || receipt.Order.Discount != 0 {
		t.Errorf("order promo = %v discount = %v, want none", receipt.Order.PromoCode, receipt.Order.Discount)
	}
	if receipt.Order.Total != 12.99 {
		t.Errorf("total = %v, want 12.99", receipt.Order.Total)
	}
}

func TestSubmitOrderPersistFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repo.CreateFunc = func(ctx context.Context, tenantID string, o *Order) error {
		return errors.New("disk full")
	}
	c := f.cartWith(t, 1, nil)

	_, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{CartID: c.ID})
	if !errors.Is(err, ErrOrderSubmissionFailed) {
		t.Fatalf("SubmitOrder() error = %v, want ErrOrderSubmissionFailed", err)
	}
	if _, err := f.carts.GetActiveCart(ctx, "t-1", c.ID); err != nil {
		t.Errorf("cart should stay open, got %v", err)
	}
}

func TestSubmitOrderEnqueueFailureStillReturnsReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tickets.EnqueueFunc = func(ctx context.Context, tenantID string, req kitchen.EnqueueRequest) (*kitchen.Ticket, error) {
		return nil, errors.New("kitchen unavailable")
	}
	c := f.cartWith(t, 1, nil)

	receipt, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{CartID: c.ID})
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if receipt.TicketID != "" {
		t.Errorf("ticket id = %q, want empty", receipt.TicketID)
	}
	if o, err := f.service.GetOrder(ctx, "t-1", receipt.Order.ID); err != nil || o == nil {
		t.Errorf("GetOrder() = %v, %v", o, err)
	}

	f.tickets.EnqueueFunc = nil
	repaired, err := f.service.ReconcileTickets(ctx, "t-1")
	if err != nil {
		t.Fatalf("ReconcileTickets() error = %v", err)
	}
	if len(repaired) != 1 || repaired[0] != receipt.Order.ID {
		t.Errorf("repaired = %v", repaired)
	}

	again, err := f.service.ReconcileTickets(ctx, "t-1")
	if err != nil || len(again) != 0 {
		t.Errorf("second ReconcileTickets() = %v, %v, want nothing", again, err)
	}
}

func TestSubmitOrderLostCheckoutCancelsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var created *Order
	f.repo.CreateFunc = func(ctx context.Context, tenantID string, o *Order) error {
		created = o
		return f.orders.Create(ctx, tenantID, o)
	}
	f.cartsM.CheckOutFunc = func(ctx context.Context, tenantID, cartID string) error {
		return cart.ErrCartClosed
	}
	c := f.cartWith(t, 1, nil)

	_, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{CartID: c.ID})
	if !errors.Is(err, cart.ErrCartClosed) {
		t.Fatalf("SubmitOrder() error = %v, want ErrCartClosed", err)
	}

	o, err := f.service.GetOrder(ctx, "t-1", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != "cancelled" {
		t.Errorf("order status = %q, want cancelled", o.Status)
	}
	if ticket, _ := f.queue.ForOrder(ctx, "t-1", created.ID); ticket != nil {
		t.Error("no ticket should be enqueued for a lost checkout")
	}
}

func TestSubmitOrderConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.cartWith(t, 1, nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SubmitOrder(ctx, "t-1", SubmitRequest{CartID: c.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, cart.ErrCartClosed):
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful submits = %d, want 1", wins)
	}

	tickets, err := f.queue.Outstanding(ctx, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 {
		t.Errorf("tickets = %d, want 1", len(tickets))
	}
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.GetOrder(context.Background(), "t-1", "nope"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("GetOrder() error = %v, want ErrOrderNotFound", err)
	}
}
