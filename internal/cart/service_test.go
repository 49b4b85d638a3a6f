package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/appetiteclub/ordering/internal/catalog"
	"github.com/appetiteclub/ordering/internal/promo"
	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestService() (*Service, *StoreRepository) {
	repo := NewStoreRepository(tenant.NewMemoryBackend())
	lookup := &MockLookup{Catalog: map[string]catalog.MenuItem{"margherita": margherita()}}
	builder := NewSummaryBuilder(lookup, promo.NewEvaluator(promo.DefaultDefinitions), DefaultPricing)
	return NewService(repo, builder, nil), repo
}

func TestEnsureCart(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		ids          Identifiers
		wantDeviceID string
	}{
		{name: "withDevice", ids: Identifiers{DeviceID: "kiosk-1"}, wantDeviceID: "kiosk-1"},
		{name: "deviceFromSession", ids: Identifiers{SessionID: "s-1"}, wantDeviceID: "s-1"},
		{name: "deviceFromUser", ids: Identifiers{UserID: "u-1"}, wantDeviceID: "u-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()

			view, err := svc.EnsureCart(ctx, "t-1", tt.ids, nil)
			if err != nil {
				t.Fatalf("EnsureCart() error = %v", err)
			}
			if view.Cart.DeviceID != tt.wantDeviceID {
				t.Errorf("device id = %q, want %q", view.Cart.DeviceID, tt.wantDeviceID)
			}
			if view.Cart.Status != StatusOpen {
				t.Errorf("status = %q, want open", view.Cart.Status)
			}
		})
	}
}

func TestEnsureCartWithoutIdentifiersUsesCartID(t *testing.T) {
	svc, _ := newTestService()

	view, err := svc.EnsureCart(context.Background(), "t-1", Identifiers{}, nil)
	if err != nil {
		t.Fatalf("EnsureCart() error = %v", err)
	}
	if view.Cart.DeviceID != view.Cart.ID {
		t.Errorf("device id = %q, want cart id %q", view.Cart.DeviceID, view.Cart.ID)
	}
}

func TestEnsureCartReusesOpenCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	first, err := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1", SessionID: "s-1"}, nil)
	if err != nil {
		t.Fatalf("EnsureCart() error = %v", err)
	}

	second, err := svc.EnsureCart(ctx, "t-1", Identifiers{SessionID: "s-1"}, strPtr("WELCOME20"))
	if err != nil {
		t.Fatalf("EnsureCart() error = %v", err)
	}
	if second.Cart.ID != first.Cart.ID {
		t.Fatalf("got new cart %s, want %s", second.Cart.ID, first.Cart.ID)
	}
	if second.Cart.Promo() != "WELCOME20" {
		t.Errorf("promo = %q, want WELCOME20", second.Cart.Promo())
	}

	stored, err := svc.GetActiveCart(ctx, "t-1", first.Cart.ID)
	if err != nil {
		t.Fatalf("GetActiveCart() error = %v", err)
	}
	if stored.Promo() != "WELCOME20" {
		t.Errorf("stored promo = %q, want WELCOME20", stored.Promo())
	}

	other, err := svc.EnsureCart(ctx, "t-2", Identifiers{SessionID: "s-1"}, nil)
	if err != nil {
		t.Fatalf("EnsureCart() error = %v", err)
	}
	if other.Cart.ID == first.Cart.ID {
		t.Error("other tenant got the same cart")
	}
}

func TestGetActiveCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	view, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, nil)
	closed, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-2"}, nil)
	if err := svc.CheckOut(ctx, "t-1", closed.Cart.ID); err != nil {
		t.Fatalf("CheckOut() error = %v", err)
	}

	tests := []struct {
		name    string
		tenant  string
		id      string
		wantErr error
	}{
		{name: "open", tenant: "t-1", id: view.Cart.ID},
		{name: "missing", tenant: "t-1", id: "nope", wantErr: ErrCartNotFound},
		{name: "otherTenant", tenant: "t-2", id: view.Cart.ID, wantErr: ErrCartNotFound},
		{name: "closed", tenant: "t-1", id: closed.Cart.ID, wantErr: ErrCartClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetActiveCart(ctx, tt.tenant, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	view, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, strPtr("TAKE5"))
	id := view.Cart.ID

	items := []RawItem{{MenuItemID: "margherita", Quantity: 1}, {MenuItemID: "margherita", Quantity: 1.5}}
	updated, err := svc.UpdateCart(ctx, "t-1", id, UpdateRequest{Items: &items})
	if err != nil {
		t.Fatalf("UpdateCart() error = %v", err)
	}
	if len(updated.Cart.Items) != 1 || updated.Cart.Items[0].Quantity != 2 {
		t.Errorf("items = %+v", updated.Cart.Items)
	}
	if updated.Cart.Promo() != "TAKE5" {
		t.Errorf("omitted promo should be kept, got %q", updated.Cart.Promo())
	}
	if updated.Summary.Total != 22.99 {
		t.Errorf("total = %v, want 22.99", updated.Summary.Total)
	}

	cleared, err := svc.UpdateCart(ctx, "t-1", id, UpdateRequest{UpdatePromoCode: true})
	if err != nil {
		t.Fatalf("UpdateCart() error = %v", err)
	}
	if cleared.Cart.PromoCode != nil {
		t.Errorf("promo should be cleared, got %q", cleared.Cart.Promo())
	}

	stored, _ := svc.GetActiveCart(ctx, "t-1", id)
	if stored.PromoCode != nil || len(stored.Items) != 1 {
		t.Errorf("stored cart = %+v", stored)
	}
}

func TestUpdateCartClosed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	view, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, nil)
	_ = svc.CheckOut(ctx, "t-1", view.Cart.ID)

	items := []RawItem{{MenuItemID: "margherita", Quantity: 1}}
	_, err := svc.UpdateCart(ctx, "t-1", view.Cart.ID, UpdateRequest{Items: &items})
	if !errors.Is(err, ErrCartClosed) {
		t.Errorf("err = %v, want ErrCartClosed", err)
	}
}

func TestUpdateCartStoreFailure(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	view, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, nil)

	failing := &MockRepository{
		Inner: repo,
		UpdateOpenFunc: func(ctx context.Context, tenantID, id string, fields bson.M) (bool, error) {
			return false, errors.New("store down")
		},
	}
	svc.repo = failing

	_, err := svc.UpdateCart(ctx, "t-1", view.Cart.ID, UpdateRequest{UpdatePromoCode: true, PromoCode: strPtr("TAKE5")})
	if !errors.Is(err, ErrCartUpdateFailed) {
		t.Errorf("err = %v, want ErrCartUpdateFailed", err)
	}
}

func TestEnsureCartPromoLostToCheckout(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	view, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, nil)

	svc.repo = &MockRepository{
		Inner: repo,
		UpdateOpenFunc: func(ctx context.Context, tenantID, id string, fields bson.M) (bool, error) {
			if _, err := repo.MarkCheckedOut(ctx, tenantID, id); err != nil {
				return false, err
			}
			return repo.UpdateOpen(ctx, tenantID, id, fields)
		},
	}

	got, err := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, strPtr("WELCOME20"))
	if !errors.Is(err, ErrCartClosed) {
		t.Fatalf("EnsureCart() = %v, %v; want ErrCartClosed", got, err)
	}

	stored, _ := repo.Get(ctx, "t-1", view.Cart.ID)
	if stored.PromoCode != nil {
		t.Errorf("promo code = %q, want none", *stored.PromoCode)
	}
}

func TestPromoCodeHelpers(t *testing.T) {
	tests := []struct {
		name string
		in   *string
		want *string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "blank", in: strPtr("   "), want: nil},
		{name: "trimmed", in: strPtr(" WELCOME20 "), want: strPtr("WELCOME20")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanPromoCode(tt.in)
			if !SamePromoCode(got, tt.want) {
				t.Errorf("CleanPromoCode() = %v, want %v", got, tt.want)
			}
		})
	}

	if SamePromoCode(strPtr("A"), nil) || !SamePromoCode(nil, nil) || SamePromoCode(strPtr("A"), strPtr("B")) {
		t.Error("SamePromoCode() compared codes wrongly")
	}
}

func TestCheckOutHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	view, _ := svc.EnsureCart(ctx, "t-1", Identifiers{DeviceID: "kiosk-1"}, nil)

	var mu sync.Mutex
	wins, losses := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.CheckOut(ctx, "t-1", view.Cart.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrCartClosed):
				losses++
			}
		}()
	}
	wg.Wait()

	if wins != 1 || losses != 15 {
		t.Errorf("wins = %d, losses = %d", wins, losses)
	}
}
