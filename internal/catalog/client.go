package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/appetiteclub/apt"
)

// HTTPLookup asks the menu service for each item.
type HTTPLookup struct {
	client   *apt.ServiceClient
	currency string
	logger   apt.Logger
}

func NewHTTPLookup(client *apt.ServiceClient, currency string, logger apt.Logger) *HTTPLookup {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &HTTPLookup{client: client, currency: currency, logger: logger}
}

func (l *HTTPLookup) Items(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]MenuItem, len(ids))

	var firstErr error
	for _, id := range ids {
		path := fmt.Sprintf("/menu/items/%s?tenant_id=%s", url.PathEscape(id), url.QueryEscape(tenantID))
		resp, err := l.client.Request(ctx, "GET", path, nil)
		if err != nil {
			l.logger.Debug("menu item not fetched", "menu_item_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		item, err := decodeMenuItem(resp.Data, l.currency)
		if err != nil {
			l.logger.Debug("menu item not decoded", "menu_item_id", id, "error", err)
			continue
		}
		out[id] = item
	}

	if len(out) == 0 && firstErr != nil {
		return nil, fmt.Errorf("cannot fetch menu items: %w", firstErr)
	}
	return out, nil
}

type menuItemDTO struct {
	ID     string            `json:"id"`
	Name   map[string]string `json:"name"`
	Active bool              `json:"active"`
	Prices []struct {
		Amount       float64 `json:"amount"`
		CurrencyCode string  `json:"currency_code"`
	} `json:"prices"`
}

// decodeMenuItem flattens the menu service's localized, multi-currency item.
// The price in the preferred currency wins, else the first listed.
func decodeMenuItem(data interface{}, currency string) (MenuItem, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return MenuItem{}, err
	}
	var dto menuItemDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return MenuItem{}, err
	}
	if dto.ID == "" {
		return MenuItem{}, fmt.Errorf("missing menu item id")
	}

	item := MenuItem{
		ID:        dto.ID,
		Name:      localized(dto.Name),
		Available: dto.Active,
	}
	for i, p := range dto.Prices {
		if i == 0 || p.CurrencyCode == currency {
			item.Price = p.Amount
			item.Currency = p.CurrencyCode
		}
		if p.CurrencyCode == currency {
			break
		}
	}
	return item, nil
}

func localized(names map[string]string) string {
	for _, lang := range []string{"en", "es"} {
		if n := names[lang]; n != "" {
			return n
		}
	}
	for _, n := range names {
		return n
	}
	return ""
}
