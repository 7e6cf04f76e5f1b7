package repository

import (
	"context"
	"errors"

	"github.com/fjod/bakery-storefront/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository persists the whole line-item sequence of a cart under its
// owner key. Writers replace the sequence; there is no partial update.
type CartRepository interface {
	GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
}
