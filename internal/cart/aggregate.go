package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fjod/bakery-storefront/internal/domain"
)

// Total sums price times quantity over items.
func Total(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func ItemCount(items []domain.CartLineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// ClearOnOrderPlaced empties the cart an order was placed from.
func ClearOnOrderPlaced(s *Store) func(context.Context, domain.OrderPlaced) error {
	return func(ctx context.Context, evt domain.OrderPlaced) error {
		return s.ClearKey(ctx, evt.OwnerKey)
	}
}
