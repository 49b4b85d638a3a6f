package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// View is a cart with its priced summary.
type View struct {
	Cart    *Cart   `json:"cart"`
	Summary Summary `json:"summary"`
}

// UpdateRequest edits a cart. A nil Items leaves items alone. PromoCode is
// only applied when UpdatePromoCode is set, so a nil PromoCode can clear it.
type UpdateRequest struct {
	Items           *[]RawItem
	PromoCode       *string
	UpdatePromoCode bool
}

type Service struct {
	repo      Repository
	summaries *SummaryBuilder
	logger    apt.Logger
}

func NewService(repo Repository, summaries *SummaryBuilder, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Service{repo: repo, summaries: summaries, logger: logger}
}

func (s *Service) Summaries() *SummaryBuilder {
	return s.summaries
}

// EnsureCart returns the open cart owned by any of the identifiers, creating
// one when there is none.
func (s *Service) EnsureCart(ctx context.Context, tenantID string, ids Identifiers, promoCode *string) (*View, error) {
	ids = Identifiers{
		DeviceID:  strings.TrimSpace(ids.DeviceID),
		SessionID: strings.TrimSpace(ids.SessionID),
		UserID:    strings.TrimSpace(ids.UserID),
	}
	code := CleanPromoCode(promoCode)

	c, err := s.repo.FindOpen(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	if c == nil {
		c = newCart(ids)
		c.TenantID = tenantID
		if promoCode != nil {
			c.PromoCode = code
		}
		if err := s.repo.Create(ctx, tenantID, c); err != nil {
			return nil, err
		}
		s.logger.Info("cart created", "tenant_id", tenantID, "cart_id", c.ID)
		return s.view(ctx, tenantID, c)
	}

	if promoCode != nil && !SamePromoCode(c.PromoCode, code) {
		if err := s.write(ctx, tenantID, c.ID, bson.M{"promo_code": code}); err != nil {
			return nil, err
		}
		c.PromoCode = code
	}
	return s.view(ctx, tenantID, c)
}

func (s *Service) GetActiveCart(ctx context.Context, tenantID, cartID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCartNotFound
	}
	if !c.IsOpen() {
		return nil, ErrCartClosed
	}
	return c, nil
}

// GetCart returns any cart, open or not, with its summary.
func (s *Service) GetCart(ctx context.Context, tenantID, cartID string) (*View, error) {
	c, err := s.repo.Get(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCartNotFound
	}
	return s.view(ctx, tenantID, c)
}

func (s *Service) UpdateCart(ctx context.Context, tenantID, cartID string, req UpdateRequest) (*View, error) {
	c, err := s.GetActiveCart(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}

	fields := bson.M{}
	if req.Items != nil {
		c.Items = Normalize(*req.Items)
		fields["items"] = c.Items
	}
	if req.UpdatePromoCode {
		c.PromoCode = CleanPromoCode(req.PromoCode)
		fields["promo_code"] = c.PromoCode
	}

	if len(fields) > 0 {
		if err := s.write(ctx, tenantID, cartID, fields); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, tenantID, c)
}

// SetPromoCode stores a new code on an open cart.
func (s *Service) SetPromoCode(ctx context.Context, tenantID, cartID string, code *string) error {
	return s.write(ctx, tenantID, cartID, bson.M{"promo_code": CleanPromoCode(code)})
}

// CheckOut closes the cart. It fails with ErrCartClosed when another caller
// closed it first.
func (s *Service) CheckOut(ctx context.Context, tenantID, cartID string) error {
	won, err := s.repo.MarkCheckedOut(ctx, tenantID, cartID)
	if err != nil {
		return fmt.Errorf("cannot check out cart %s: %w", cartID, err)
	}
	if !won {
		return ErrCartClosed
	}
	return nil
}

func (s *Service) write(ctx context.Context, tenantID, cartID string, fields bson.M) error {
	ok, err := s.repo.UpdateOpen(ctx, tenantID, cartID, fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCartUpdateFailed, err)
	}
	if ok {
		return nil
	}

	// Lost to a concurrent checkout, or the cart vanished.
	_, err = s.GetActiveCart(ctx, tenantID, cartID)
	if errors.Is(err, ErrCartClosed) || errors.Is(err, ErrCartNotFound) {
		return err
	}
	return ErrCartUpdateFailed
}

func (s *Service) view(ctx context.Context, tenantID string, c *Cart) (*View, error) {
	summary, err := s.summaries.Build(ctx, tenantID, c)
	if err != nil {
		return nil, err
	}
	return &View{Cart: c, Summary: summary}, nil
}

func newCart(ids Identifiers) *Cart {
	c := &Cart{
		ID:        uuid.NewString(),
		DeviceID:  ids.DeviceID,
		SessionID: ids.SessionID,
		UserID:    ids.UserID,
		Status:    StatusOpen,
		Items:     []Item{},
	}
	if c.DeviceID == "" {
		switch {
		case c.SessionID != "":
			c.DeviceID = c.SessionID
		case c.UserID != "":
			c.DeviceID = c.UserID
		default:
			c.DeviceID = c.ID
		}
	}
	return c
}

// CleanPromoCode trims a supplied code; blank codes clear the promotion.
func CleanPromoCode(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func SamePromoCode(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
